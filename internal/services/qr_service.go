package services

import (
	"context"

	"github.com/cyphera/grantpay/internal/accounts"
	"github.com/cyphera/grantpay/internal/apperrors"
	"github.com/cyphera/grantpay/internal/qrbundle"
	"go.uber.org/zap"
)

// QRService issues and checks the signed bundles customers present to vendors.
type QRService struct {
	accounts *accounts.Directory
	bundler  *qrbundle.Bundler
	renderer *qrbundle.Renderer
	logger   *zap.Logger
}

func NewQRService(directory *accounts.Directory, bundler *qrbundle.Bundler, renderer *qrbundle.Renderer, logger *zap.Logger) *QRService {
	return &QRService{accounts: directory, bundler: bundler, renderer: renderer, logger: logger}
}

type IssuedBundle struct {
	Bundle *qrbundle.Bundle
	QRCode string
}

// IssueBundle signs the customer's current authorizations and renders them as a QR code.
func (s *QRService) IssueBundle(ctx context.Context, customerID string) (*IssuedBundle, error) {
	if _, err := s.accounts.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	bundle, err := s.bundler.BuildBundle(ctx, customerID)
	if err != nil {
		return nil, err
	}
	code, err := s.renderer.EncodeBundle(bundle)
	if err != nil {
		return nil, apperrors.Internal("services.IssueBundle", "failed to render QR code", err)
	}

	s.logger.Debug("issued grant bundle",
		zap.String("customer_id", customerID),
		zap.Int("grants", len(bundle.Grants)))
	return &IssuedBundle{Bundle: bundle, QRCode: code}, nil
}

// VerifyBundle checks a scanned bundle. The parsed bundle is returned only when it verifies.
func (s *QRService) VerifyBundle(raw []byte) (*qrbundle.Bundle, bool) {
	bundle, ok := s.bundler.ParseAndVerify(raw)
	if !ok {
		return nil, false
	}
	return bundle, true
}
