package engine

// ScrapeRequest fetches a page and converts it.
type ScrapeRequest struct {
	URL    string `json:"url" validate:"required,url"`
	Format string `json:"format" validate:"oneof=markdown html text"`
}

func (*ScrapeRequest) Kind() Kind { return KindScrape }

func (r *ScrapeRequest) applyDefaults() {
	if r.Format == "" {
		r.Format = "markdown"
	}
}

// PDFRequest renders HTML or a URL to PDF.
type PDFRequest struct {
	HTML            string `json:"html" validate:"required_without=URL"`
	URL             string `json:"url" validate:"required_without=HTML,omitempty,url"`
	Format          string `json:"format" validate:"oneof=A4 Letter"`
	PrintBackground *bool  `json:"printBackground"`
	Landscape       bool   `json:"landscape"`
}

func (*PDFRequest) Kind() Kind { return KindPDF }

func (r *PDFRequest) applyDefaults() {
	if r.Format == "" {
		r.Format = "A4"
	}
	if r.PrintBackground == nil {
		t := true
		r.PrintBackground = &t
	}
}

// ShotRequest captures a screenshot.
type ShotRequest struct {
	URL      string `json:"url" validate:"required,url"`
	Width    int    `json:"width" validate:"min=100,max=3840"`
	Height   int    `json:"height" validate:"min=100,max=2160"`
	FullPage bool   `json:"full_page"`
}

func (*ShotRequest) Kind() Kind { return KindShot }

func (r *ShotRequest) applyDefaults() {
	if r.Width == 0 {
		r.Width = 1920
	}
	if r.Height == 0 {
		r.Height = 1080
	}
}

// MailRequest sends one message.
type MailRequest struct {
	To       string `json:"to" validate:"required,email"`
	Subject  string `json:"subject" validate:"required,max=998"`
	HTML     string `json:"html" validate:"required"`
	FromName string `json:"from_name" validate:"max=100"`
}

func (*MailRequest) Kind() Kind { return KindMail }

func (r *MailRequest) applyDefaults() {
	if r.FromName == "" {
		r.FromName = "Ritan"
	}
}

// QRRequest encodes text as a QR image.
type QRRequest struct {
	Text  string `json:"text" validate:"required,min=1,max=2000"`
	Width int    `json:"width" validate:"min=100,max=2000"`
	Color string `json:"color" validate:"oneof=black blue red"`
}

func (*QRRequest) Kind() Kind { return KindQR }

func (r *QRRequest) applyDefaults() {
	if r.Width == 0 {
		r.Width = 500
	}
	if r.Color == "" {
		r.Color = "black"
	}
}

// DNSRequest resolves records for a domain.
type DNSRequest struct {
	Domain string `json:"domain" validate:"required,fqdn"`
	Type   string `json:"type" validate:"oneof=A MX TXT NS CNAME"`
}

func (*DNSRequest) Kind() Kind { return KindDNS }

func (r *DNSRequest) applyDefaults() {
	if r.Type == "" {
		r.Type = "A"
	}
}
