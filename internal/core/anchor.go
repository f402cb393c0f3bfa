package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"

	"custodyledger/internal/blob"
	"custodyledger/pkg/domain"
)

// Document metadata keys written alongside anchored documents.
const (
	MetadataDigest     = "digest"
	MetadataAnchoredBy = "anchored-by"
)

// Anchor describes a reference document whose digest was pinned in the gate.
type Anchor struct {
	Document blob.Info `json:"document"`
	Gate     Gate      `json:"gate"`
}

// AnchorCheck reports whether a stored document still matches the gate.
type AnchorCheck struct {
	Key     string `json:"key"`
	Digest  Digest `json:"digest"`
	Current Digest `json:"current"`
	Matches bool   `json:"matches"`
}

// DocumentDigest returns the Keccak-256 digest of r and the number of bytes read.
func DocumentDigest(r io.Reader) (Digest, int64, error) {
	h := sha3.NewLegacyKeccak256()
	n, err := io.Copy(h, r)
	if err != nil {
		return Digest{}, n, err
	}
	return common.BytesToHash(h.Sum(nil)), n, nil
}

// AnchorDocument stores a reference document and sets the integrity gate to
// its digest. The caller must be allowed to update the hash; the document is
// removed again when the gate update fails.
func (s *Service) AnchorDocument(ctx context.Context, caller Identity, key, contentType string, r io.Reader) (Anchor, error) {
	if s.opts.documents == nil {
		return Anchor{}, domain.New(domain.CodeInvalidArgument, "no document store configured")
	}
	if err := s.store.View(ctx, func(v domain.TransactionView) error {
		return requirePolicy(v, s.opts.hashPolicy, OpAnchorDocument, caller)
	}); err != nil {
		return Anchor{}, err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return Anchor{}, domain.Wrap(domain.CodeInvalidArgument, "read document", err)
	}
	digest, _, err := DocumentDigest(bytes.NewReader(body))
	if err != nil {
		return Anchor{}, domain.Wrap(domain.CodeInternal, "digest document", err)
	}
	info, err := s.opts.documents.Put(ctx, key, bytes.NewReader(body), blob.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			MetadataDigest:     digest.Hex(),
			MetadataAnchoredBy: caller.Hex(),
		},
	})
	if err != nil {
		if errors.Is(err, blob.ErrExists) {
			return Anchor{}, domain.Wrap(domain.CodeInvalidArgument, fmt.Sprintf("document %s already stored", key), err)
		}
		return Anchor{}, domain.Wrap(domain.CodeInternal, fmt.Sprintf("store document %s", key), err)
	}
	gate, _, err := s.setDigest(ctx, OpAnchorDocument, caller, digest)
	if err != nil {
		if _, derr := s.opts.documents.Delete(ctx, key); derr != nil {
			s.logger.Warn("document cleanup failed", "key", key, "error", derr)
		}
		return Anchor{}, err
	}
	return Anchor{Document: info, Gate: gate}, nil
}

// CheckAnchoredDocument recomputes the digest of a stored document and
// compares it with the current gate. Document content is never interpreted.
func (s *Service) CheckAnchoredDocument(ctx context.Context, key string) (AnchorCheck, error) {
	if s.opts.documents == nil {
		return AnchorCheck{}, domain.New(domain.CodeInvalidArgument, "no document store configured")
	}
	_, rc, err := s.opts.documents.Get(ctx, key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return AnchorCheck{}, domain.Wrap(domain.CodeInvalidArgument, fmt.Sprintf("document %s not found", key), err)
		}
		return AnchorCheck{}, domain.Wrap(domain.CodeInternal, fmt.Sprintf("load document %s", key), err)
	}
	defer func() { _ = rc.Close() }()
	digest, _, err := DocumentDigest(rc)
	if err != nil {
		return AnchorCheck{}, domain.Wrap(domain.CodeInternal, fmt.Sprintf("digest document %s", key), err)
	}
	gate, err := s.CurrentDigest(ctx)
	if err != nil {
		return AnchorCheck{}, err
	}
	return AnchorCheck{Key: key, Digest: digest, Current: gate.Digest, Matches: digest == gate.Digest}, nil
}

// Documents lists stored reference documents under prefix.
func (s *Service) Documents(ctx context.Context, prefix string) ([]blob.Info, error) {
	if s.opts.documents == nil {
		return nil, nil
	}
	return s.opts.documents.List(ctx, prefix)
}
