package stock

import (
	"fmt"
	"time"

	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

// TLSClientConfig は署名付きAPI用HTTPクライアントの設定。
type TLSClientConfig struct {
	Timeout  time.Duration
	ProxyURL string
}

// NewTLSClient はブラウザ相当のTLSフィンガープリントを持つHTTPクライアントを生成する。
// 署名付きAPIはTLSフィンガープリントでボットを弾くため、Chromeのプロファイルを使う。
func NewTLSClient(cfg TLSClientConfig) (tls_client.HttpClient, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	options := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(int(timeout.Seconds())),
		tls_client.WithClientProfile(profiles.Chrome_120),
		tls_client.WithNotFollowRedirects(),
		tls_client.WithCookieJar(tls_client.NewCookieJar()),
	}
	if cfg.ProxyURL != "" {
		options = append(options, tls_client.WithProxyUrl(cfg.ProxyURL))
	}

	client, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tls client: %w", err)
	}
	return client, nil
}
