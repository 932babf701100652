// Package analyzer classifies a URL's page and recommends a miner.
package analyzer

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/services/fetch"
)

// Service fetches and classifies pages
type Service struct {
	fetcher *fetch.Client
	logger  arbor.ILogger
}

// NewService creates a page analyzer
func NewService(fetcher *fetch.Client, logger arbor.ILogger) *Service {
	return &Service{fetcher: fetcher, logger: logger}
}

// Analyze fetches the URL (through the shared cache) and classifies it
func (s *Service) Analyze(ctx context.Context, rawURL string) (*models.PageAnalysis, error) {
	result, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		analysis := &models.PageAnalysis{
			URL:      rawURL,
			PageType: models.PageTypeError,
		}
		analysis.Recommendation = recommend(analysis)
		s.logger.Warn().Err(err).Str("url", rawURL).Msg("Analyzer fetch failed")
		return analysis, nil
	}

	analysis := AnalyzeHTML(rawURL, result.HTML, result.HTTPCode)
	analysis.FromCache = result.FromCache

	s.logger.Info().
		Str("url", rawURL).
		Str("page_type", string(analysis.PageType)).
		Str("miner", string(analysis.Recommendation.Miner)).
		Int("email_count", analysis.EmailCount).
		Int("detail_links", analysis.DetailLinkCount).
		Msg("Page analyzed")

	return analysis, nil
}

// AnalyzeHTML classifies already-fetched HTML. Split out from Analyze so
// classification is testable without network access.
func AnalyzeHTML(rawURL, html string, httpCode int) *models.PageAnalysis {
	analysis := &models.PageAnalysis{
		URL:            rawURL,
		HTTPCode:       httpCode,
		PaginationType: models.PaginationNone,
	}

	// Blocked responses are classified before any parsing; the fetch
	// layer already refuses to cache them.
	if httpCode == 401 || httpCode == 403 || httpCode == 429 {
		analysis.PageType = models.PageTypeBlocked
		analysis.Recommendation = recommend(analysis)
		return analysis
	}
	if httpCode >= 500 || httpCode == 404 {
		analysis.PageType = models.PageTypeError
		analysis.Recommendation = recommend(analysis)
		return analysis
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		analysis.PageType = models.PageTypeError
		analysis.Recommendation = recommend(analysis)
		return analysis
	}

	detectEmails(analysis, html)
	detectTables(analysis, doc)
	detectDetailLinks(analysis, doc, rawURL)
	detectPagination(analysis, doc, html)
	dynamic := detectDynamic(doc, html)
	viewerScore := documentViewerScore(doc, html)
	analysis.IsDocumentViewer = viewerScore >= 40
	analysis.IsDirectory = isDirectoryHost(rawURL)

	// An HTTP 200 page without a single anchor is not minable content;
	// near-empty pages need a challenge marker too.
	anchorCount := doc.Find("a").Length()
	if anchorCount == 0 || (anchorCount < 3 && looksLikeChallenge(html)) {
		analysis.PageType = models.PageTypeBlocked
		analysis.Recommendation = recommend(analysis)
		return analysis
	}

	analysis.PageType = classify(analysis, dynamic, anchorCount)
	analysis.Recommendation = recommend(analysis)
	return analysis
}

// classify applies the precedence order:
// ERROR > BLOCKED > DIRECTORY > DOCUMENT_VIEWER > EXHIBITOR_TABLE >
// PAGINATED > EXHIBITOR_LIST > SINGLE_PAGE > DYNAMIC > UNKNOWN
func classify(a *models.PageAnalysis, dynamic bool, anchorCount int) models.PageType {
	switch {
	case a.IsDirectory:
		return models.PageTypeDirectory
	case a.IsDocumentViewer:
		return models.PageTypeDocumentViewer
	case a.HasTable && a.TableCount > 0 && (a.HasEmails || a.DetailLinkCount > 0):
		return models.PageTypeExhibitorTable
	case a.PaginationType != models.PaginationNone:
		return models.PageTypePaginated
	case a.DetailLinkCount >= 5:
		return models.PageTypeExhibitorList
	case a.HasEmails:
		return models.PageTypeSinglePage
	case dynamic:
		return models.PageTypeDynamic
	case anchorCount > 0:
		return models.PageTypeSinglePage
	}
	return models.PageTypeUnknown
}

// recommend maps a page type to the miner to run. UseCache is true only
// for HTTP-consumable miners; the browser re-fetches its own pages.
func recommend(a *models.PageAnalysis) models.Recommendation {
	switch a.PageType {
	case models.PageTypeBlocked:
		return models.Recommendation{
			Miner:  models.MinerBrowser,
			Reason: "HTTP fetch blocked, browser required",
		}
	case models.PageTypeError:
		return models.Recommendation{
			Miner:  models.MinerHTTPBasic,
			Reason: "fetch error, retry with basic miner",
		}
	case models.PageTypeDirectory:
		return models.Recommendation{
			Miner:         models.MinerDirectory,
			Reason:        "business directory host",
			OwnPagination: true,
		}
	case models.PageTypeDocumentViewer:
		return models.Recommendation{
			Miner:    models.MinerDocument,
			UseCache: true,
			Reason:   "embedded document viewer detected",
		}
	case models.PageTypeExhibitorTable:
		return models.Recommendation{
			Miner:    models.MinerTable,
			UseCache: true,
			Reason:   "tabular listing with contacts",
		}
	case models.PageTypePaginated:
		return models.Recommendation{
			Miner:           models.MinerHTTPBasic,
			UseCache:        true,
			Reason:          "paginated listing",
			NeedsPagination: true,
		}
	case models.PageTypeExhibitorList:
		return models.Recommendation{
			Miner:  models.MinerBrowser,
			Reason: "list page with detail links",
		}
	case models.PageTypeSinglePage:
		return models.Recommendation{
			Miner:    models.MinerHTTPBasic,
			UseCache: true,
			Reason:   "single page with direct contacts",
		}
	case models.PageTypeDynamic:
		return models.Recommendation{
			Miner:  models.MinerBrowser,
			Reason: "JavaScript-rendered content",
		}
	}
	return models.Recommendation{
		Miner:  models.MinerAI,
		Reason: "unclassified page, AI extraction",
	}
}
