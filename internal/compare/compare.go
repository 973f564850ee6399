package compare

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spigell/segcompare/internal/segment"
	"github.com/spigell/segcompare/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	missingAnalysis        = "This section is missing in the filled document."
	missingRemediation     = "Please provide content for this section."
	sufficientAnalysis     = "This section is sufficiently filled and matches the template."
	sufficientRemediation  = "None needed."
	unavailableRemediation = "Retry the comparison once the judgment service is reachable."

	defaultMaxLogLength = 200
)

var errNoOracle = errors.New("judgment oracle is not configured")

// Oracle judges a filled section against its template counterpart and answers in the
// labelled line format understood by ParseVerdict.
type Oracle interface {
	Judge(ctx context.Context, templateSection, filledSection string) (string, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, templateSection, filledSection string) (string, error)

func (f OracleFunc) Judge(ctx context.Context, templateSection, filledSection string) (string, error) {
	return f(ctx, templateSection, filledSection)
}

type Options struct {
	// Workers bounds concurrent oracle calls. Values below 2 compare sequentially.
	Workers int
	// Timeout applies to every oracle call. Zero disables it.
	Timeout time.Duration
	// MaxLogLength limits previews of oracle answers in debug logs.
	MaxLogLength int
}

type Comparator struct {
	oracle    Oracle
	logger    *zap.Logger
	workers   int
	timeout   time.Duration
	maxLogLen int
}

func New(oracle Oracle, logger *zap.Logger, opts Options) *Comparator {
	if logger == nil {
		logger = zap.NewNop()
	}

	maxLogLen := opts.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	return &Comparator{
		oracle:    oracle,
		logger:    logger,
		workers:   opts.Workers,
		timeout:   opts.Timeout,
		maxLogLen: maxLogLen,
	}
}

// Compare produces one record per template section in template order. Sections that only
// exist in the filled document are ignored. When ctx is cancelled the records finished so far
// are returned together with the context error.
func (c *Comparator) Compare(ctx context.Context, template, filled *segment.Map) (*Report, error) {
	sections := template.Sections()
	records := make([]*Record, len(sections))

	evaluate := func(i int) {
		s := sections[i]
		filledText, _ := filled.Get(s.Name)
		records[i] = c.compareSection(ctx, s.Name, s.Text, filledText)
	}

	var err error
	if c.workers <= 1 {
		for i := range sections {
			if err = ctx.Err(); err != nil {
				break
			}
			evaluate(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(c.workers)

		for i := range sections {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				evaluate(i)
				return nil
			})
		}

		err = g.Wait()
	}
	if err == nil {
		err = ctx.Err()
	}

	report := &Report{records: make(map[string]Record, len(sections))}
	for i, s := range sections {
		if records[i] != nil {
			report.add(s.Name, *records[i])
		}
	}

	if err != nil {
		c.logger.Warn("comparison interrupted",
			zap.Int("sections", len(sections)),
			zap.Int("compared", report.Len()),
			zap.Error(err),
		)
		return report, err
	}

	return report, nil
}

// compareSection returns nil when the section was abandoned because ctx was cancelled.
func (c *Comparator) compareSection(ctx context.Context, name, templateText, filledText string) *Record {
	record := &Record{TemplateText: templateText, FilledText: filledText}

	switch {
	case strings.TrimSpace(filledText) == "":
		record.Status = StatusMissing
		record.Analysis = missingAnalysis
		record.Remediation = missingRemediation
		record.MatchPercent = 0
	case strings.TrimSpace(filledText) == strings.TrimSpace(templateText):
		record.Status = StatusSufficient
		record.Analysis = sufficientAnalysis
		record.Remediation = sufficientRemediation
		record.MatchPercent = 100
	default:
		raw, err := c.judge(ctx, templateText, filledText)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("judgment oracle failed",
				zap.String("section", name),
				zap.Error(err),
			)
			record.Status = StatusOtherIssue
			record.SubStatus = SubStatusOracleUnavailable
			record.Analysis = fmt.Sprintf("The judgment oracle was unreachable: %s", err)
			record.Remediation = unavailableRemediation
			record.MatchPercent = 0
			return record
		}

		c.logger.Debug("judgment oracle answered",
			zap.String("section", name),
			zap.Int("response_length", utf8.RuneCountInString(raw)),
			zap.String("response_preview", utils.TruncateForLog(raw, c.maxLogLen)),
		)

		verdict := ParseVerdict(raw)
		record.Status = verdict.Status
		record.Analysis = verdict.Reason
		record.Remediation = verdict.Remediation
		record.MatchPercent = verdict.MatchPercent
	}

	c.logger.Debug("section compared",
		zap.String("section", name),
		zap.String("status", string(record.Status)),
		zap.Int("match_percent", record.MatchPercent),
	)

	return record
}

func (c *Comparator) judge(ctx context.Context, templateText, filledText string) (string, error) {
	if c.oracle == nil {
		return "", errNoOracle
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	return c.oracle.Judge(ctx, templateText, filledText)
}
