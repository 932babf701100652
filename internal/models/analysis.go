package models

// PageType classifies a fetched page for miner routing
type PageType string

const (
	PageTypeError          PageType = "ERROR"
	PageTypeBlocked        PageType = "BLOCKED"
	PageTypeDirectory      PageType = "DIRECTORY"
	PageTypeDocumentViewer PageType = "DOCUMENT_VIEWER"
	PageTypeExhibitorTable PageType = "EXHIBITOR_TABLE"
	PageTypePaginated      PageType = "PAGINATED"
	PageTypeExhibitorList  PageType = "EXHIBITOR_LIST"
	PageTypeSinglePage     PageType = "SINGLE_PAGE"
	PageTypeDynamic        PageType = "DYNAMIC"
	PageTypeUnknown        PageType = "UNKNOWN"
)

// PaginationType describes how a site pages its listings
type PaginationType string

const (
	PaginationNone     PaginationType = "none"
	PaginationNumbered PaginationType = "numbered"
	PaginationNext     PaginationType = "next"
	PaginationLoadMore PaginationType = "load_more"
	PaginationInfinite PaginationType = "infinite"
)

// MinerName identifies a miner implementation
type MinerName string

const (
	MinerHTTPBasic     MinerName = "http_basic"
	MinerBrowser       MinerName = "browser_detail"
	MinerTable         MinerName = "table"
	MinerDirectory     MinerName = "directory"
	MinerDocument      MinerName = "document"
	MinerFile          MinerName = "file"
	MinerAI            MinerName = "ai"
	MinerVendorCatalog MinerName = "vendor_catalog"
)

// Recommendation pairs a page type with the miner to run
type Recommendation struct {
	Miner           MinerName `json:"miner"`
	UseCache        bool      `json:"use_cache"`
	Reason          string    `json:"reason"`
	NeedsPagination bool      `json:"needs_pagination,omitempty"`
	OwnPagination   bool      `json:"own_pagination,omitempty"`
}

// PageAnalysis is the analyzer's classification of a URL
type PageAnalysis struct {
	URL              string         `json:"url"`
	HTTPCode         int            `json:"http_code"`
	PageType         PageType       `json:"page_type"`
	PaginationType   PaginationType `json:"pagination_type"`
	HasEmails        bool           `json:"has_emails"`
	EmailCount       int            `json:"email_count"`
	HasTable         bool           `json:"has_table"`
	TableCount       int            `json:"table_count"`
	HasDetailLinks   bool           `json:"has_detail_links"`
	DetailLinkCount  int            `json:"detail_link_count"`
	IsDocumentViewer bool           `json:"is_document_viewer"`
	IsDirectory      bool           `json:"is_directory"`
	FromCache        bool           `json:"from_cache"`
	Recommendation   Recommendation `json:"recommendation"`
}
