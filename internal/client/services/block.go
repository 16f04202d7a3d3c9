package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/gophvault/internal/client/client"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/manifest"
	"github.com/dmitrijs2005/gophvault/internal/netx"
	"github.com/google/uuid"
)

// ErrBlockCorrupted means a downloaded block decrypted fine but does not
// match the digest recorded in its manifest.
var ErrBlockCorrupted = errors.New("block digest mismatch")

type BlockService struct {
	client client.Client
	http   *http.Client
}

// NewBlockService uses hc for object storage transfers; nil means
// http.DefaultClient.
func NewBlockService(c client.Client, hc *http.Client) *BlockService {
	return &BlockService{client: c, http: hc}
}

// Upload encrypts data under a fresh key and stores it as a new block.
// The returned access has offset 0; callers place it within the file.
func (s *BlockService) Upload(ctx context.Context, data []byte) (manifest.BlockAccess, error) {
	ciphertext, key, err := cryptox.EncryptBlock(data)
	if err != nil {
		return manifest.BlockAccess{}, fmt.Errorf("encrypt block: %w", err)
	}

	id := uuid.New()
	url, err := s.client.BlockCreateURL(ctx, id)
	if err != nil {
		return manifest.BlockAccess{}, fmt.Errorf("block %s: create url: %w", id, err)
	}
	if err := netx.Upload(ctx, s.http, url, ciphertext); err != nil {
		return manifest.BlockAccess{}, fmt.Errorf("block %s: %w", id, err)
	}

	return manifest.BlockAccess{
		ID:     id,
		Key:    key,
		Size:   uint64(len(data)),
		Digest: manifest.HashBlock(data),
	}, nil
}

// Download fetches, decrypts and verifies the block behind access.
func (s *BlockService) Download(ctx context.Context, access manifest.BlockAccess) ([]byte, error) {
	url, err := s.client.BlockReadURL(ctx, access.ID)
	if err != nil {
		return nil, fmt.Errorf("block %s: read url: %w", access.ID, err)
	}
	ciphertext, err := netx.Download(ctx, s.http, url)
	if err != nil {
		return nil, fmt.Errorf("block %s: %w", access.ID, err)
	}

	data, err := cryptox.Open(access.Key, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("block %s: decrypt: %w", access.ID, err)
	}
	if !access.Verify(data) {
		return nil, fmt.Errorf("%w: %s", ErrBlockCorrupted, access.ID)
	}
	return data, nil
}
