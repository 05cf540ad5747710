// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package signing

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
)

// AzureConfig locates the media container.
type AzureConfig struct {
	AccountName string
	AccountKey  string
	Container   string
	// BaseURL defaults to https://{account}.blob.core.windows.net.
	BaseURL string
}

// AzureSigner issues read-only blob SAS URLs signed with the account key.
type AzureSigner struct {
	cred      *azblob.SharedKeyCredential
	baseURL   string
	container string
	protocol  sas.Protocol
	now       Clock
}

// NewAzureSigner validates the shared key and builds a signer.
func NewAzureSigner(cfg AzureConfig) (*AzureSigner, error) {
	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
	}
	protocol := sas.ProtocolHTTPS
	// Emulators such as Azurite serve plain http.
	if strings.HasPrefix(base, "http://") {
		protocol = sas.ProtocolHTTPSandHTTP
	}
	return &AzureSigner{
		cred:      cred,
		baseURL:   base,
		container: cfg.Container,
		protocol:  protocol,
		now:       utcNow,
	}, nil
}

// WithClock replaces the clock, for tests.
func (s *AzureSigner) WithClock(c Clock) *AzureSigner {
	s.now = c
	return s
}

func (s *AzureSigner) Backend() Backend { return BackendAzure }

func (s *AzureSigner) Sign(_ context.Context, key string, ttl time.Duration) (Grant, error) {
	expiry := s.now().Add(ttl).Truncate(time.Second)
	qp, err := sas.BlobSignatureValues{
		Protocol:      s.protocol,
		ExpiryTime:    expiry,
		Permissions:   (&sas.BlobPermissions{Read: true}).String(),
		ContainerName: s.container,
		BlobName:      key,
	}.SignWithSharedKey(s.cred)
	if err != nil {
		return Grant{}, fmt.Errorf("azure sas: %w", err)
	}
	return Grant{
		URL:       fmt.Sprintf("%s/%s/%s?%s", s.baseURL, s.container, escapeBlobName(key), qp.Encode()),
		ExpiresAt: expiry,
		TTL:       ttl,
	}, nil
}

// escapeBlobName percent-encodes each path segment and keeps the separators.
func escapeBlobName(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
