package pipeline

import (
	"strings"

	"github.com/sells-group/lead-scout/internal/fetcher"
)

// BlockType describes the kind of anti-bot page detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// Pages above these sizes are real content even when they embed a
// captcha widget or mention a challenge.
const (
	maxChallengeBytes = 20000
	maxCaptchaBytes   = 5000
	maxShellBytes     = 2000
)

var challengeSignatures = []string{
	"checking your browser",
	"cf-browser-verification",
	"just a moment...",
	"attention required",
	"please enable cookies",
}

// DetectBlock checks a fetched page for signs of anti-bot protection.
func DetectBlock(resp *fetcher.Response) (bool, BlockType) {
	if resp == nil || len(resp.Body) > maxChallengeBytes {
		return false, BlockNone
	}
	lower := strings.ToLower(string(resp.Body))

	for _, sig := range challengeSignatures {
		if strings.Contains(lower, sig) {
			return true, BlockCloudflare
		}
	}
	if strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge") {
		return true, BlockCloudflare
	}

	if len(resp.Body) < maxCaptchaBytes &&
		(strings.Contains(lower, "captcha") || strings.Contains(lower, "hcaptcha")) {
		return true, BlockCaptcha
	}

	// JS-only shell: very small body with noscript or meta refresh.
	if len(resp.Body) < maxShellBytes {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, "meta http-equiv=\"refresh\"") {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}
