package status

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/MrSnakeDoc/presence/internal/domain"
	"github.com/MrSnakeDoc/presence/internal/logger"
)

// Source combines the reader and the parser and remembers the last parse,
// so an unchanged report is not parsed again.
type Source struct {
	reader *Reader
	parser *Parser
	logger logger.Logger

	cached *domain.Snapshot
}

// NewSource creates a snapshot source.
func NewSource(reader *Reader, parser *Parser, log logger.Logger) *Source {
	return &Source{
		reader: reader,
		parser: parser,
		logger: log,
	}
}

// Load reads and parses the current report.
//
// A report that fails to parse may be a partial write; it is read again
// after the reader's delay as long as the content keeps changing, up to the
// reader's attempt bound. The last parse error is returned otherwise.
func (s *Source) Load(ctx context.Context) (*domain.Snapshot, error) {
	content, changed, err := s.reader.Read(ctx)
	if err != nil {
		return nil, err
	}
	if !changed && s.cached != nil {
		return s.cached, nil
	}

	var parseErr error
	for attempt := 1; attempt <= s.reader.attempts; attempt++ {
		snap, err := s.parser.Parse(content)
		if err == nil {
			s.cached = snap
			return snap, nil
		}
		parseErr = err
		s.cached = nil

		if attempt == s.reader.attempts {
			break
		}
		if err := sleep(ctx, s.reader.delay); err != nil {
			return nil, err
		}
		next, changed, err := s.reader.Read(ctx)
		if err != nil {
			return nil, errors.CombineErrors(parseErr, err)
		}
		if !changed {
			break
		}
		s.logger.Debug("status report changed during read, parsing again",
			logger.Int("attempt", attempt+1))
		content = next
	}

	return nil, parseErr
}
