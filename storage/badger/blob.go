// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-crypt/x/blake2b"
	"github.com/poiesic/sharerag/storage"
)

// DefaultLinkTTL is how long a media link stays valid.
const DefaultLinkTTL = time.Hour

var (
	// ErrSigningKeyRequired indicates a blob repository built without a MAC key.
	ErrSigningKeyRequired = errors.New("blob signing key is required")

	// ErrLinkExpired indicates a media link past its expiry.
	ErrLinkExpired = errors.New("link expired")

	// ErrBadSignature indicates a media link whose signature does not match.
	ErrBadSignature = errors.New("bad link signature")
)

// BlobRepository implements storage.BlobStore on BadgerDB and signs
// time-limited links with a keyed BLAKE2b-256 MAC.
type BlobRepository struct {
	backend *Backend
	baseURL string
	key     []byte
	ttl     time.Duration
	now     func() time.Time
}

var _ storage.BlobStore = (*BlobRepository)(nil)

// BlobOption configures a BlobRepository.
type BlobOption func(*BlobRepository) error

// WithLinkTTL sets the lifetime of generated links.
func WithLinkTTL(ttl time.Duration) BlobOption {
	return func(r *BlobRepository) error {
		if ttl <= 0 {
			return fmt.Errorf("link ttl must be positive, got %s", ttl)
		}
		r.ttl = ttl
		return nil
	}
}

// WithClock replaces the time source used for link expiry.
func WithClock(now func() time.Time) BlobOption {
	return func(r *BlobRepository) error {
		r.now = now
		return nil
	}
}

// NewBlobRepository creates a BlobRepository serving links under baseURL.
// The key must be between 1 and 64 bytes.
func NewBlobRepository(backend *Backend, baseURL string, key []byte, opts ...BlobOption) (*BlobRepository, error) {
	if len(key) == 0 {
		return nil, ErrSigningKeyRequired
	}
	if len(key) > blake2b.Size {
		return nil, fmt.Errorf("blob signing key longer than %d bytes", blake2b.Size)
	}
	r := &BlobRepository{
		backend: backend,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		key:     append([]byte(nil), key...),
		ttl:     DefaultLinkTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Put stores data under name, replacing any previous blob.
func (r *BlobRepository) Put(ctx context.Context, name string, data []byte) error {
	if err := checkBlobName(name); err != nil {
		return err
	}
	return r.backend.WithTransaction(ctx, func(ctx context.Context, tx *badger.Txn) error {
		return tx.Set(makeBlobKey(name), data)
	})
}

// Get returns the blob stored under name.
func (r *BlobRepository) Get(ctx context.Context, name string) ([]byte, error) {
	if err := checkBlobName(name); err != nil {
		return nil, err
	}
	var data []byte
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeBlobKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: blob %s", storage.ErrNotFound, name)
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	}, false)
	return data, err
}

// Link returns a signed URL for name valid for the configured TTL.
func (r *BlobRepository) Link(ctx context.Context, name string) (string, error) {
	return r.LinkFor(name, r.ttl)
}

// LinkFor returns a signed URL for name valid for ttl.
// Format: {baseURL}/{name}?exp={unix}&sig={hex}
func (r *BlobRepository) LinkFor(name string, ttl time.Duration) (string, error) {
	if err := checkBlobName(name); err != nil {
		return "", err
	}
	exp := r.now().Add(ttl).Unix()
	sig, err := r.sign(name, exp)
	if err != nil {
		return "", err
	}
	query := url.Values{}
	query.Set("exp", strconv.FormatInt(exp, 10))
	query.Set("sig", hex.EncodeToString(sig))
	return r.baseURL + "/" + url.PathEscape(name) + "?" + query.Encode(), nil
}

// Verify checks the expiry and signature presented with a link.
func (r *BlobRepository) Verify(name, exp, sig string) error {
	expiry, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed expiry", ErrBadSignature)
	}
	presented, err := hex.DecodeString(sig)
	if err != nil {
		return fmt.Errorf("%w: malformed signature", ErrBadSignature)
	}
	expected, err := r.sign(name, expiry)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(presented, expected) != 1 {
		return ErrBadSignature
	}
	if r.now().Unix() > expiry {
		return ErrLinkExpired
	}
	return nil
}

func (r *BlobRepository) sign(name string, exp int64) ([]byte, error) {
	mac, err := blake2b.New(blake2b.Size256, r.key)
	if err != nil {
		return nil, err
	}
	mac.Write([]byte(name + "|" + strconv.FormatInt(exp, 10)))
	return mac.Sum(nil), nil
}

func checkBlobName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", storage.ErrInvalidBlobName, name)
	}
	return nil
}
