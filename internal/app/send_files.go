package app

import (
	"context"
	"crypto/x509"
	"time"

	"github.com/Amund211/thingcache/internal/domain"
	"github.com/Amund211/thingcache/internal/logging"
	"golang.org/x/sync/errgroup"
)

// Files are sent concurrently, at most this many at a time
const maxConcurrentSends = 8

var supportedFormats = map[string]bool{
	"4.0": true,
	"3.1": true,
}

type Recognizer interface {
	// Returns false if the file is not a document
	TryRecognize(file domain.File) (domain.Document, bool)
}

type Cryptographer interface {
	Sign(content []byte, certificate *x509.Certificate) ([]byte, error)
}

type Sender interface {
	// Returns false if the content could not be delivered
	TrySend(ctx context.Context, content []byte) bool
}

type SendResult struct {
	SkippedFiles []domain.File
}

// SendFiles signs and sends every acceptable file and reports the rest as skipped.
// Each file is handled independently, one failing file never affects another.
type SendFiles func(ctx context.Context, files []domain.File, certificate *x509.Certificate) SendResult

func BuildSendFiles(
	recognizer Recognizer,
	cryptographer Cryptographer,
	sender Sender,
	nowFunc func() time.Time,
) SendFiles {
	return func(ctx context.Context, files []domain.File, certificate *x509.Certificate) SendResult {
		now := nowFunc()

		sent := make([]bool, len(files))
		group := errgroup.Group{}
		group.SetLimit(maxConcurrentSends)
		for i, file := range files {
			group.Go(func() error {
				sent[i] = trySendFile(ctx, recognizer, cryptographer, sender, now, file, certificate)
				return nil
			})
		}
		// Never fails, errors are reported as skipped files
		_ = group.Wait()

		skipped := make([]domain.File, 0)
		for i, file := range files {
			if !sent[i] {
				skipped = append(skipped, file)
			}
		}

		return SendResult{SkippedFiles: skipped}
	}
}

func trySendFile(
	ctx context.Context,
	recognizer Recognizer,
	cryptographer Cryptographer,
	sender Sender,
	now time.Time,
	file domain.File,
	certificate *x509.Certificate,
) bool {
	logger := logging.FromContext(ctx).With("file", file.Name)

	if ctx.Err() != nil {
		logger.InfoContext(ctx, "Skipping file", "reason", "cancelled")
		return false
	}

	document, ok := recognizer.TryRecognize(file)
	if !ok {
		logger.InfoContext(ctx, "Skipping file", "reason", "not recognized")
		return false
	}

	if !checkFormat(document) {
		logger.InfoContext(ctx, "Skipping file", "reason", "unsupported format", "format", document.Format)
		return false
	}

	if !checkActual(document, now) {
		logger.InfoContext(ctx, "Skipping file", "reason", "too old", "created", document.Created)
		return false
	}

	signedContent, err := cryptographer.Sign(document.Content, certificate)
	if err != nil {
		logger.ErrorContext(ctx, "Skipping file", "reason", "signing failed", "error", err.Error())
		return false
	}

	if !sender.TrySend(ctx, signedContent) {
		logger.WarnContext(ctx, "Skipping file", "reason", "send failed")
		return false
	}

	return true
}

func checkFormat(document domain.Document) bool {
	return supportedFormats[document.Format]
}

// Documents are accepted for one month after they were created
func checkActual(document domain.Document, now time.Time) bool {
	return addMonth(document.Created).After(now)
}

// addMonth moves t to the same day next month, clamped to that month's last day.
// time.AddDate would normalize Jan 31 to Mar 2/3 instead of Feb 28/29.
func addMonth(t time.Time) time.Time {
	year, month, day := t.Date()
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfNext.AddDate(0, 1, -1).Day()
	day = min(day, lastDay)

	hour, minute, second := t.Clock()
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), day, hour, minute, second, t.Nanosecond(), t.Location())
}
