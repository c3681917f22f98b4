package acquire

// Profile はHTTPクライアントが名乗るブラウザのヘッダー一式。
type Profile struct {
	Name    string
	Headers map[string]string
}

const (
	uaChromeWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaChromeLinux   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaSafariMac     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15"
	uaEdgeWindows   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0"
	uaMobileSafari  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
)

// baseHeaders はすべてのプロファイルに共通するヘッダー。
func baseHeaders(ua string) map[string]string {
	return map[string]string{
		"User-Agent":      ua,
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "zh-TW,zh;q=0.9,en;q=0.8",
		"Sec-Fetch-Dest":  "empty",
		"Sec-Fetch-Mode":  "cors",
		"Sec-Fetch-Site":  "same-origin",
	}
}

func withHeaders(base map[string]string, extra map[string]string) map[string]string {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

// ChromeWindows は直接取得戦略が使うプロファイル。
func ChromeWindows() Profile {
	return Profile{
		Name: "chrome_windows",
		Headers: withHeaders(baseHeaders(uaChromeWindows), map[string]string{
			"sec-ch-ua":          `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
			"sec-ch-ua-mobile":   "?0",
			"sec-ch-ua-platform": `"Windows"`,
		}),
	}
}

// DefaultProfiles は複数プロファイル戦略が順に試すプロファイル。
func DefaultProfiles() []Profile {
	return []Profile{
		ChromeWindows(),
		{
			Name: "chrome_linux",
			Headers: withHeaders(baseHeaders(uaChromeLinux), map[string]string{
				"sec-ch-ua-platform": `"Linux"`,
			}),
		},
		{Name: "safari_mac", Headers: baseHeaders(uaSafariMac)},
		{
			Name: "edge_windows",
			Headers: withHeaders(baseHeaders(uaEdgeWindows), map[string]string{
				"sec-ch-ua":          `"Not_A Brand";v="8", "Chromium";v="120", "Microsoft Edge";v="120"`,
				"sec-ch-ua-platform": `"Windows"`,
			}),
		},
		{Name: "mobile_safari", Headers: baseHeaders(uaMobileSafari)},
	}
}
