package export

import (
	"github.com/adaeze-okafor/stats-exporter/internal/common"
)

// Settings is the export configuration snapshot attached to a job at
// creation. It is copied by value everywhere; nothing mutates it after the
// job is stored.
type Settings struct {
	Branding BrandingSettings `json:"branding" toml:"branding"`
	Page     PageSettings     `json:"page" toml:"page"`
	Content  ContentSettings  `json:"content" toml:"content"`
	Media    MediaSettings    `json:"media" toml:"media"`
	Security SecuritySettings `json:"security" toml:"security"`
	Document DocumentSettings `json:"document" toml:"document"`
}

// BrandingSettings are CSS-style hex colors applied by renderers.
type BrandingSettings struct {
	PrimaryColor    string `json:"primary_color" toml:"primary_color"`
	SecondaryColor  string `json:"secondary_color" toml:"secondary_color"`
	AccentColor     string `json:"accent_color" toml:"accent_color"`
	TextColor       string `json:"text_color" toml:"text_color"`
	BackgroundColor string `json:"background_color" toml:"background_color"`
}

// PageSettings control physical layout for paged formats.
type PageSettings struct {
	Orientation  string  `json:"orientation" toml:"orientation"` // portrait | landscape
	Size         string  `json:"size" toml:"size"`               // letter | a4
	MarginTop    float64 `json:"margin_top" toml:"margin_top"`   // points
	MarginBottom float64 `json:"margin_bottom" toml:"margin_bottom"`
	MarginLeft   float64 `json:"margin_left" toml:"margin_left"`
	MarginRight  float64 `json:"margin_right" toml:"margin_right"`
}

// ContentSettings toggle report sections on and off.
type ContentSettings struct {
	CoverPage        bool `json:"cover_page" toml:"cover_page"`
	ExecutiveSummary bool `json:"executive_summary" toml:"executive_summary"`
	TableOfContents  bool `json:"table_of_contents" toml:"table_of_contents"`
	Methodology      bool `json:"methodology" toml:"methodology"`
	Appendix         bool `json:"appendix" toml:"appendix"`
}

// MediaSettings control embedded image and chart dimensions.
type MediaSettings struct {
	ImageDPI    int `json:"image_dpi" toml:"image_dpi"`
	ChartWidth  int `json:"chart_width" toml:"chart_width"` // pixels
	ChartHeight int `json:"chart_height" toml:"chart_height"`
}

// SecuritySettings cover document protection and watermarking.
type SecuritySettings struct {
	PasswordProtect bool   `json:"password_protect" toml:"password_protect"`
	Password        string `json:"-" toml:"password"`
	WatermarkText   string `json:"watermark_text" toml:"watermark_text"`
}

// DocumentSettings are embedded document metadata.
type DocumentSettings struct {
	Author   string   `json:"author" toml:"author"`
	Subject  string   `json:"subject" toml:"subject"`
	Keywords []string `json:"keywords" toml:"keywords"`
}

// DefaultSettings returns the configuration used when a request carries none.
func DefaultSettings() Settings {
	return Settings{
		Branding: BrandingSettings{
			PrimaryColor:    "#1f4e79",
			SecondaryColor:  "#5b9bd5",
			AccentColor:     "#ed7d31",
			TextColor:       "#333333",
			BackgroundColor: "#ffffff",
		},
		Page: PageSettings{
			Orientation:  "portrait",
			Size:         "letter",
			MarginTop:    72,
			MarginBottom: 72,
			MarginLeft:   72,
			MarginRight:  72,
		},
		Content: ContentSettings{
			CoverPage:        true,
			ExecutiveSummary: true,
			TableOfContents:  true,
			Methodology:      false,
			Appendix:         false,
		},
		Media: MediaSettings{
			ImageDPI:    150,
			ChartWidth:  960,
			ChartHeight: 540,
		},
		Security: SecuritySettings{},
		Document: DocumentSettings{
			Author:  "stats-exporter",
			Subject: "Statistical report",
		},
	}
}

// Clone returns a deep copy; Keywords is the only reference field.
func (s Settings) Clone() Settings {
	out := s
	if s.Document.Keywords != nil {
		out.Document.Keywords = append([]string(nil), s.Document.Keywords...)
	}
	return out
}

// Validate checks vocabulary fields and numeric bounds.
func (s Settings) Validate() error {
	v := common.NewValidator()
	v.Field("branding.primary_color", s.Branding.PrimaryColor, common.HexColor)
	v.Field("branding.secondary_color", s.Branding.SecondaryColor, common.HexColor)
	v.Field("branding.accent_color", s.Branding.AccentColor, common.HexColor)
	v.Field("branding.text_color", s.Branding.TextColor, common.HexColor)
	v.Field("branding.background_color", s.Branding.BackgroundColor, common.HexColor)
	v.Field("page.orientation", s.Page.Orientation, common.OneOf("portrait", "landscape"))
	v.Field("page.size", s.Page.Size, common.OneOf("letter", "a4"))

	if err := common.ValidateAndReturnError(v); err != nil {
		return err
	}

	if s.Page.MarginTop < 0 || s.Page.MarginBottom < 0 || s.Page.MarginLeft < 0 || s.Page.MarginRight < 0 {
		return common.NewAppError("VALIDATION_ERROR", "page margins must be non-negative", common.ErrValidation)
	}
	if s.Media.ImageDPI <= 0 {
		return common.NewAppError("VALIDATION_ERROR", "image_dpi must be positive", common.ErrValidation)
	}
	if s.Media.ChartWidth <= 0 || s.Media.ChartHeight <= 0 {
		return common.NewAppError("VALIDATION_ERROR", "chart dimensions must be positive", common.ErrValidation)
	}
	if s.Security.PasswordProtect && s.Security.Password == "" {
		return common.NewAppError("VALIDATION_ERROR", "password_protect requires a password", common.ErrValidation)
	}
	return nil
}

// PageDimensions returns the page width and height in points, after
// orientation is applied.
func (s Settings) PageDimensions() (w, h float64) {
	switch s.Page.Size {
	case "a4":
		w, h = 595.28, 841.89
	default: // letter
		w, h = 612, 792
	}
	if s.Page.Orientation == "landscape" {
		w, h = h, w
	}
	return w, h
}
