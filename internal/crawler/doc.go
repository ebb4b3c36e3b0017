// Package crawler implements the job-board crawl: search URL construction,
// listing and detail page parsing, and the orchestrator that walks each
// state's listing pages and fetches every posting's detail page.
package crawler
