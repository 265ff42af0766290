package device

import "testing"

const (
	uaWeChat        = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 MicroMessenger/8.0.44(0x18002c2f) NetType/WIFI Language/zh_CN"
	uaDesktopChrome = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	uaMacChrome     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	uaMacSafari     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15"
	uaAndroid       = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Mobile Safari/537.36"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want Profile
	}{
		{
			name: "wechat",
			ua:   uaWeChat,
			want: Profile{Mobile: true, InApp: true, PrefersPreviewOverDownload: true, ReducedMotion: true, PixelRatio: 1.5},
		},
		{
			name: "desktop chrome",
			ua:   uaDesktopChrome,
			want: Profile{PixelRatio: 2},
		},
		{
			name: "mac chrome",
			ua:   uaMacChrome,
			want: Profile{PixelRatio: 2},
		},
		{
			name: "mac safari",
			ua:   uaMacSafari,
			want: Profile{SupportsShare: true, PixelRatio: 2},
		},
		{
			name: "android chrome",
			ua:   uaAndroid,
			want: Profile{Mobile: true, PrefersPreviewOverDownload: true, PixelRatio: 2},
		},
		{
			name: "empty",
			ua:   "",
			want: Profile{PixelRatio: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.ua); got != tt.want {
				t.Errorf("Detect() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestWithReducedMotion(t *testing.T) {
	p := Detect(uaDesktopChrome)
	if p.WithReducedMotion(false).ReducedMotion {
		t.Error("false hint should not enable reduced motion")
	}
	if !p.WithReducedMotion(true).ReducedMotion {
		t.Error("true hint should enable reduced motion")
	}
	if !Detect(uaWeChat).WithReducedMotion(false).ReducedMotion {
		t.Error("hint must not re-enable motion for wechat")
	}
}
