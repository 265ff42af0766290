// Package device derives a runtime capability profile from a User-Agent.
// The profile is computed once when a card session starts and decides how
// the card is animated and how an exported image reaches the user.
package device

import (
	"regexp"
)

var (
	mobileRe = regexp.MustCompile(`(?i)Android|iPhone|iPad|iPod|Mobi`)
	wechatRe = regexp.MustCompile(`(?i)MicroMessenger`)
	// Other in-app webviews that cannot download attachments.
	inAppRe  = regexp.MustCompile(`(?i)MicroMessenger|QQ/|Weibo|DingTalk|AlipayClient|FBAN|FBAV|Instagram|Line/`)
	chromeRe = regexp.MustCompile(`(?i)Chrome/|Chromium/|CriOS/|Edg/|OPR/|Firefox/|FxiOS/`)
	safariRe = regexp.MustCompile(`(?i)Version/[\d.]+.*Safari/`)
	macRe    = regexp.MustCompile(`(?i)Macintosh|Mac OS X`)
)

// Profile describes what the client can do.
type Profile struct {
	Mobile bool `json:"mobile"`
	InApp  bool `json:"inApp"`

	// SupportsShare is true where the platform share sheet accepts files.
	SupportsShare bool `json:"supportsShare"`

	// PrefersPreviewOverDownload is true where attachment downloads are
	// unreliable; the export is shown on a page to long-press and save.
	PrefersPreviewOverDownload bool `json:"prefersPreview"`

	// ReducedMotion disables fireworks and entrance animation.
	ReducedMotion bool `json:"reducedMotion"`

	// PixelRatio is the first-tier capture scale.
	PixelRatio float64 `json:"pixelRatio"`
}

// Detect classifies a User-Agent string.
func Detect(userAgent string) Profile {
	mobile := mobileRe.MatchString(userAgent)
	wechat := wechatRe.MatchString(userAgent)
	inApp := inAppRe.MatchString(userAgent)

	p := Profile{
		Mobile:                     mobile,
		InApp:                      inApp,
		PrefersPreviewOverDownload: mobile || inApp,
		ReducedMotion:              wechat,
		PixelRatio:                 2,
	}
	if wechat {
		p.PixelRatio = 1.5
	}

	// Desktop Safari is the only desktop browser whose share sheet takes
	// image files; mobile browsers are routed to the preview instead.
	if !mobile && !inApp && macRe.MatchString(userAgent) &&
		safariRe.MatchString(userAgent) && !chromeRe.MatchString(userAgent) {
		p.SupportsShare = true
	}
	return p
}

// WithReducedMotion returns p with motion disabled, for clients that send
// the Sec-CH-Prefers-Reduced-Motion hint.
func (p Profile) WithReducedMotion(reduce bool) Profile {
	if reduce {
		p.ReducedMotion = true
	}
	return p
}
