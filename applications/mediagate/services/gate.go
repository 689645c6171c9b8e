package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/donmikel/mediagate/applications/mediagate/domain"
)

// Gate accepts or rejects uploads against a ValidationRule.
//
// Checks run in a fixed order and stop at the first failure: presence, type, minimum size,
// maximum size. A candidate whose body does not match its declared size is rejected last. Types are compared as exact MIME strings; the file extension is only consulted
// when the candidate carries no MIME type at all.
type Gate struct {
	rule domain.ValidationRule
	now  func() time.Time
}

func NewGate(rule domain.ValidationRule) *Gate {
	return &Gate{
		rule: rule,
		now:  time.Now,
	}
}

func (g *Gate) Rule() domain.ValidationRule {
	return g.rule
}

func (g *Gate) Validate(candidate *domain.FileCandidate) (domain.MediaAsset, error) {
	if candidate == nil {
		return domain.MediaAsset{}, &domain.ValidationError{
			Reason:  domain.ReasonAbsent,
			Message: "no file selected",
		}
	}

	mimeType := candidate.MimeType
	if mimeType == "" {
		mimeType = domain.TypeForName(candidate.Name)
	}

	if !g.rule.Allows(mimeType) {
		return domain.MediaAsset{}, &domain.ValidationError{
			Reason:  domain.ReasonInvalidType,
			Message: fmt.Sprintf("file type %q not supported, allowed types: %s", mimeType, g.allowedList()),
		}
	}

	size := candidate.Size
	if g.rule.MinSizeBytes > 0 && size < g.rule.MinSizeBytes {
		return domain.MediaAsset{}, &domain.ValidationError{
			Reason:  domain.ReasonTooSmall,
			Message: fmt.Sprintf("file size is too small, minimum is %s", humanize.IBytes(uint64(g.rule.MinSizeBytes))),
		}
	}

	if g.rule.MaxSizeBytes > 0 && size > g.rule.MaxSizeBytes {
		return domain.MediaAsset{}, &domain.ValidationError{
			Reason:  domain.ReasonTooLarge,
			Message: fmt.Sprintf("file size is too large, maximum is %s", humanize.IBytes(uint64(g.rule.MaxSizeBytes))),
		}
	}

	// the declared size is what got checked, so it has to be what gets published
	if received := int64(len(candidate.Body)); received != size {
		msg := fmt.Sprintf("file content is incomplete, received %s of %s",
			humanize.IBytes(uint64(received)), humanize.IBytes(uint64(size)))
		return domain.MediaAsset{}, &domain.ValidationError{
			Reason:  domain.ReasonIncomplete,
			Message: msg,
		}
	}

	return domain.NewMediaAsset(domain.SourceUpload, candidate.Name, mimeType, candidate.Body, g.now()), nil
}

func (g *Gate) allowedList() string {
	types := make([]string, 0, len(g.rule.AllowedTypes))
	for t := range g.rule.AllowedTypes {
		types = append(types, t)
	}
	sort.Strings(types)

	return strings.Join(types, ", ")
}
