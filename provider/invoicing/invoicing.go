// Package invoicing retrieves invoice documents of synced orders.
package invoicing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gebv/checkout"
)

type Config struct {
	EntrypointURL string
	Token         string
	ReportName    string
}

// Sink displays or prints a retrieved document.
type Sink interface {
	Document(ctx context.Context, accountMoveID int64, contentType string, body []byte) error
}

type Provider struct {
	cfg  Config
	c    *client
	sink Sink
	l    *zap.Logger
}

func NewProvider(cfg Config, sink Sink) *Provider {
	if cfg.ReportName == "" {
		cfg.ReportName = "account.report_invoice"
	}
	return &Provider{
		cfg:  cfg,
		c:    newClient(cfg.Token),
		sink: sink,
		l:    zap.L().Named("invoicing_provider"),
	}
}

func (p *Provider) link(accountMoveID int64) string {
	return fmt.Sprintf("%s/report/pdf/%s/%d", strings.TrimRight(p.cfg.EntrypointURL, "/"), p.cfg.ReportName, accountMoveID)
}

func (p *Provider) RetrieveInvoiceDocument(ctx context.Context, accountMoveID int64) error {
	body, contentType, err := p.c.GET(ctx, p.link(accountMoveID))
	if err != nil {
		p.l.Warn("Failed retrieve invoice document.", zap.Int64("account_move_id", accountMoveID), zap.Error(err))
		return err
	}
	if err := p.sink.Document(ctx, accountMoveID, contentType, body); err != nil {
		return errors.Wrap(err, "Failed handle invoice document")
	}
	return nil
}

// DirSink writes the documents to a directory.
type DirSink string

func (d DirSink) Document(ctx context.Context, accountMoveID int64, contentType string, body []byte) error {
	name := filepath.Join(string(d), fmt.Sprintf("invoice-%d.pdf", accountMoveID))
	return errors.Wrap(os.WriteFile(name, body, 0o644), "Failed write document")
}

var _ checkout.Invoicer = (*Provider)(nil)
