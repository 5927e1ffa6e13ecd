package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/arbdesk/arbdesk/internal/domain"
)

// TradeArchiveStore is the slice of the paper store the archiver needs:
// time-ranged reads of terminal trades plus their deletion after a verified
// upload.
type TradeArchiveStore interface {
	ListSettledBefore(ctx context.Context, before time.Time) ([]domain.PaperTrade, error)
	DeleteSettledBefore(ctx context.Context, before time.Time) (int64, error)
}

// ArchiveImpl implements domain.Archiver by querying terminal trades,
// serializing them to JSONL, uploading the file, and only then deleting the
// archived rows from the hot store.
type ArchiveImpl struct {
	writer domain.BlobWriter
	trades TradeArchiveStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, trades TradeArchiveStore) *ArchiveImpl {
	return &ArchiveImpl{writer: writer, trades: trades}
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// ArchiveTrades uploads all terminal trades closed before the cutoff to
// archive/paper_trades/YYYY-MM.jsonl, deletes them from the hot store, and
// returns the archived count. Rows are deleted only after the upload
// succeeds; a failed upload leaves the hot store untouched.
func (a *ArchiveImpl) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	trades, err := a.trades.ListSettledBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := archivePath("paper_trades", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}

	deleted, err := a.trades.DeleteSettledBefore(ctx, before)
	if err != nil {
		return int64(len(trades)), fmt.Errorf("s3blob: archive trades delete: %w", err)
	}

	return deleted, nil
}

// ArchiveSnapshot uploads the arbitrage rows of a snapshot to
// archive/opportunities/, keyed by the snapshot's fetch time. Empty or
// unfetched snapshots are skipped so replaced history never produces
// zero-byte objects.
func (a *ArchiveImpl) ArchiveSnapshot(ctx context.Context, snap domain.OpportunitySnapshot) error {
	if len(snap.Arbitrage) == 0 || snap.FetchedAt.IsZero() {
		return nil
	}

	buf, err := marshalJSONL(snap.Arbitrage)
	if err != nil {
		return fmt.Errorf("s3blob: archive snapshot marshal: %w", err)
	}

	path := fmt.Sprintf("archive/opportunities/%s.jsonl",
		snap.FetchedAt.UTC().Format("2006-01-02T15-04-05Z"))
	if err := a.upload(ctx, path, buf); err != nil {
		return fmt.Errorf("s3blob: archive snapshot upload: %w", err)
	}
	return nil
}

// multipartWriter is implemented by writers that support chunked uploads.
type multipartWriter interface {
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// upload picks a multipart upload for payloads past the part-size threshold
// and a single-shot put otherwise.
func (a *ArchiveImpl) upload(ctx context.Context, path string, buf []byte) error {
	if mw, ok := a.writer.(multipartWriter); ok && int64(len(buf)) >= minPartSize {
		return mw.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	}
	return a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/paper_trades/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
