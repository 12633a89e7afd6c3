package stores

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/authcore/kv"
)

// FailureFunc observes a revocation backend failure. op is "write" or "read".
type FailureFunc func(op string)

// RevocationList is a time-bounded denylist of access-token ids.
//
// An entry lives exactly as long as the token it denies had left when it was
// revoked. Writes never return errors; reads fail closed.
type RevocationList struct {
	store     kv.Store
	log       *zap.Logger
	onFailure FailureFunc
}

// NewRevocationList creates a list over store. log and onFailure may be nil.
func NewRevocationList(store kv.Store, log *zap.Logger, onFailure FailureFunc) *RevocationList {
	if log == nil {
		log = zap.NewNop()
	}
	if onFailure == nil {
		onFailure = func(string) {}
	}
	return &RevocationList{
		store:     store,
		log:       log.With(zap.String("component", "revocation_list")),
		onFailure: onFailure,
	}
}

func revokedKey(jti string) string { return "arv:" + jti }

// Blacklist denies jti for remaining. It returns false without touching
// storage when there is nothing to revoke, and false when the write fails.
func (r *RevocationList) Blacklist(ctx context.Context, jti string, remaining time.Duration) bool {
	if jti == "" || remaining <= 0 {
		return false
	}
	if err := r.store.SetWithExpiry(ctx, revokedKey(jti), "1", remaining); err != nil {
		r.onFailure("write")
		r.log.Warn("revocation write failed", zap.String("jti", jti), zap.Error(err))
		return false
	}
	return true
}

// IsBlacklisted reports whether jti is denied. A backend failure reports
// true.
func (r *RevocationList) IsBlacklisted(ctx context.Context, jti string) bool {
	if jti == "" {
		return true
	}
	found, err := r.store.Exists(ctx, revokedKey(jti))
	if err != nil {
		r.onFailure("read")
		r.log.Warn("revocation read failed; treating token as revoked", zap.String("jti", jti), zap.Error(err))
		return true
	}
	return found
}
