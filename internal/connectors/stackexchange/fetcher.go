package stackexchange

import (
	"context"
	"fmt"
	"html"

	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
	"github.com/custodia-labs/stackqa/internal/logger"
)

var _ driven.QuestionSource = (*Fetcher)(nil)

// Fetcher collects questions with accepted answers page by page.
type Fetcher struct {
	client *Client
}

// NewFetcher creates a fetcher backed by client.
func NewFetcher(client *Client) *Fetcher {
	return &Fetcher{client: client}
}

// Fetch returns questions tagged query.Tag that have an accepted answer,
// ordered by votes. Questions whose accepted answer cannot be fetched are skipped.
func (f *Fetcher) Fetch(ctx context.Context, query domain.FetchQuery) ([]domain.RawQA, error) {
	maxPages := query.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	var items []domain.RawQA
	for page := 1; page <= maxPages; page++ {
		qp, err := f.client.Questions(ctx, query.Tag, page, query.PageSize)
		if err != nil {
			return items, err
		}

		pageItems, err := f.withAnswers(ctx, qp.Items)
		if err != nil {
			return items, fmt.Errorf("page %d: %w", page, err)
		}
		items = append(items, pageItems...)

		logger.Info("fetched page %d: %d questions, %d with accepted answers (quota remaining %d)",
			page, len(qp.Items), len(pageItems), qp.QuotaRemaining)

		if !qp.HasMore {
			break
		}
	}
	return items, nil
}

// withAnswers pairs each answered question with its accepted answer body.
func (f *Fetcher) withAnswers(ctx context.Context, questions []Question) ([]domain.RawQA, error) {
	ids := make([]int64, 0, len(questions))
	for _, q := range questions {
		if q.AcceptedAnswerID != 0 {
			ids = append(ids, q.AcceptedAnswerID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	answers, err := f.client.Answers(ctx, ids)
	if err != nil {
		return nil, err
	}
	bodies := make(map[int64]string, len(answers))
	for _, a := range answers {
		bodies[a.AnswerID] = a.Body
	}

	items := make([]domain.RawQA, 0, len(ids))
	for _, q := range questions {
		if q.AcceptedAnswerID == 0 {
			continue
		}
		body, ok := bodies[q.AcceptedAnswerID]
		if !ok || body == "" {
			logger.Warn("question %d: accepted answer %d not returned, skipping", q.QuestionID, q.AcceptedAnswerID)
			continue
		}
		items = append(items, domain.RawQA{
			QuestionID: q.QuestionID,
			// Titles arrive HTML-escaped; bodies stay HTML for the normaliser.
			Title:      html.UnescapeString(q.Title),
			Link:       q.Link,
			AnswerHTML: body,
			Tags:       q.Tags,
			Score:      q.Score,
		})
	}
	return items, nil
}
