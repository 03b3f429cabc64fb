// Package stackexchange fetches questions with accepted answers from the
// Stack Exchange API and turns them into raw corpus rows.
//
// # Flow
//
// For each page of /questions (sorted by votes, filtered by tag) the fetcher
// collects the accepted_answer_id of every answered question, then fetches
// those answers with their bodies from /answers/{ids} using the "withbody"
// filter. Answers are matched back to questions by id.
//
// Pagination stops when the API reports has_more=false or after
// FetchQuery.MaxPages pages.
//
// # Rate Limiting
//
// Requests pass through a token bucket (golang.org/x/time/rate). When a
// response carries a "backoff" field, or the API reports a throttle
// violation, further requests wait for the given number of seconds.
// Transient failures (network errors, 5xx, throttling) are retried with
// exponential backoff.
//
// # Authentication
//
// An API key is optional. Without one the API allows 300 requests per day
// per IP; with one the quota rises to 10,000.
package stackexchange
