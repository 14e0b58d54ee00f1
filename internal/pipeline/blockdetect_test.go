package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/lead-scout/internal/fetcher"
)

func page(body string) *fetcher.Response {
	return &fetcher.Response{StatusCode: 200, ContentType: "text/html", Body: []byte(body)}
}

func TestDetectBlock(t *testing.T) {
	tests := []struct {
		name    string
		resp    *fetcher.Response
		blocked bool
		want    BlockType
	}{
		{name: "nil response", resp: nil, blocked: false, want: BlockNone},
		{name: "cloudflare interstitial", resp: page("<html><title>Just a moment...</title>Checking your browser before accessing</html>"), blocked: true, want: BlockCloudflare},
		{name: "cloudflare challenge", resp: page("<div>Cloudflare security challenge</div>"), blocked: true, want: BlockCloudflare},
		{name: "small captcha page", resp: page("<html><body>Please complete the reCAPTCHA to continue</body></html>"), blocked: true, want: BlockCaptcha},
		{name: "js shell", resp: page(`<html><noscript>Please enable JavaScript</noscript></html>`), blocked: true, want: BlockJSShell},
		{name: "meta refresh", resp: page(`<html><meta http-equiv="refresh" content="0;url=/x"></html>`), blocked: true, want: BlockJSShell},
		{name: "normal page", resp: page("<html><body>Ich suche eine neue Herausforderung im Vertrieb. Tel. 0151 48273916</body></html>"), blocked: false, want: BlockNone},
		{
			name:    "contact form with captcha widget",
			resp:    page("<html><body>" + strings.Repeat("Kontakt Vertrieb Außendienst ", 300) + `<div class="g-recaptcha"></div></body></html>`),
			blocked: false,
			want:    BlockNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocked, bt := DetectBlock(tt.resp)
			assert.Equal(t, tt.blocked, blocked)
			assert.Equal(t, tt.want, bt)
		})
	}
}
