package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestNewSSRFGuard はSSRFGuardの生成をテストする。
func TestNewSSRFGuard(t *testing.T) {
	guard := NewSSRFGuard(false)
	if guard == nil {
		t.Fatal("NewSSRFGuard(false) returned nil")
	}
}

// TestNewAPIClient はSSRF防止付きHTTPクライアントの生成をテストする。
func TestNewAPIClient(t *testing.T) {
	guard := NewSSRFGuard(false)
	client := guard.NewAPIClient(10 * time.Second)
	if client == nil {
		t.Fatal("NewAPIClient() returned nil")
	}
}

// TestNewAPIClientTimeout はタイムアウト設定が反映されることをテストする。
func TestNewAPIClientTimeout(t *testing.T) {
	guard := NewSSRFGuard(false)
	timeout := 5 * time.Second
	client := guard.NewAPIClient(timeout)
	if client.Timeout != timeout {
		t.Errorf("expected timeout %v, got %v", timeout, client.Timeout)
	}
}

// TestNewAPIClientHasTransport はAPIClientにカスタムTransportが設定されていることをテストする。
// safeurlはnet.DialerのControlフックでIPアドレス検証を行うため、
// Transportが標準のhttp.DefaultTransportではないことを確認する。
func TestNewAPIClientHasTransport(t *testing.T) {
	guard := NewSSRFGuard(false)
	client := guard.NewAPIClient(5 * time.Second)

	if client.Transport == nil {
		t.Fatal("expected custom Transport to be set, got nil")
	}
	if client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport, got http.DefaultTransport")
	}
}

// TestNewAPIClientBlocksLoopback はAPIClientがループバックへのリクエストをブロックすることをテストする。
// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewAPIClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	guard := NewSSRFGuard(false)
	client := guard.NewAPIClient(5 * time.Second)

	_, err := client.Get(ts.URL)
	if err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

// TestValidateURL_PublicURL は公開URLの検証が成功することをテストする。
func TestValidateURL_PublicURL(t *testing.T) {
	guard := NewSSRFGuard(false)

	publicURLs := []string{
		"https://example.com",
		"https://api.example.com/articles",
		"http://blog.example.org/api",
	}

	for _, u := range publicURLs {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err != nil {
				t.Errorf("ValidateURL(%q) returned error: %v", u, err)
			}
		})
	}
}

// TestValidateURL_PrivateIP はプライベートIPアドレスの拒否をテストする。
func TestValidateURL_PrivateIP(t *testing.T) {
	guard := NewSSRFGuard(false)

	privateURLs := []string{
		"http://10.0.0.1/api",
		"http://10.255.255.255/api",
		"http://172.16.0.1/api",
		"http://172.31.255.255/api",
		"http://192.168.0.1/api",
		"http://192.168.1.100/api",
	}

	for _, u := range privateURLs {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err == nil {
				t.Errorf("ValidateURL(%q) should have returned error for private IP", u)
			}
		})
	}
}

// TestValidateURL_LoopbackAddress はループバックアドレスの拒否をテストする。
func TestValidateURL_LoopbackAddress(t *testing.T) {
	guard := NewSSRFGuard(false)

	loopbackURLs := []string{
		"http://127.0.0.1/api",
		"http://127.0.0.2/api",
		"http://localhost/api",
	}

	for _, u := range loopbackURLs {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err == nil {
				t.Errorf("ValidateURL(%q) should have returned error for loopback address", u)
			}
		})
	}
}

// TestValidateURL_LinkLocalAddress はリンクローカルアドレスの拒否をテストする。
func TestValidateURL_LinkLocalAddress(t *testing.T) {
	guard := NewSSRFGuard(false)

	linkLocalURLs := []string{
		"http://169.254.0.1/api",
		"http://169.254.169.254/latest/meta-data/", // AWS metadata
	}

	for _, u := range linkLocalURLs {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err == nil {
				t.Errorf("ValidateURL(%q) should have returned error for link-local address", u)
			}
		})
	}
}

// TestValidateURL_MetadataIP はクラウドメタデータIPアドレスの拒否をテストする。
func TestValidateURL_MetadataIP(t *testing.T) {
	guard := NewSSRFGuard(false)

	metadataURLs := []string{
		"http://169.254.169.254/latest/meta-data/",                        // AWS
		"http://169.254.169.254/metadata/instance?api-version=2021-02-01", // Azure
		"http://169.254.169.254/computeMetadata/v1/",                      // GCP
	}

	for _, u := range metadataURLs {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err == nil {
				t.Errorf("ValidateURL(%q) should have returned error for metadata IP", u)
			}
		})
	}
}

// TestValidateURL_InvalidURL は無効なURLの検証が失敗することをテストする。
func TestValidateURL_InvalidURL(t *testing.T) {
	guard := NewSSRFGuard(false)

	invalidURLs := []string{
		"",
		"not-a-url",
		"ftp://example.com/api",
		"file:///etc/passwd",
		"gopher://example.com",
	}

	for _, u := range invalidURLs {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err == nil {
				t.Errorf("ValidateURL(%q) should have returned error for invalid URL", u)
			}
		})
	}
}

// TestValidateURL_IPv6Loopback はIPv6ループバックアドレスの拒否をテストする。
func TestValidateURL_IPv6Loopback(t *testing.T) {
	guard := NewSSRFGuard(false)

	err := guard.ValidateURL("http://[::1]/api")
	if err == nil {
		t.Error("ValidateURL(\"http://[::1]/api\") should have returned error for IPv6 loopback")
	}
}

// TestValidateURL_ZeroAddress は0.0.0.0の拒否をテストする。
func TestValidateURL_ZeroAddress(t *testing.T) {
	guard := NewSSRFGuard(false)

	err := guard.ValidateURL("http://0.0.0.0/api")
	if err == nil {
		t.Error("ValidateURL(\"http://0.0.0.0/api\") should have returned error for zero address")
	}
}

// TestSSRFGuardInterface はSSRFGuardがインターフェースを正しく実装していることをテストする。
func TestSSRFGuardInterface(t *testing.T) {
	var _ SSRFGuardService = NewSSRFGuard(false)
}

// TestNewAPIClient_AllowPrivate はプライベートアドレス許可時にループバックへ接続できることをテストする。
func TestNewAPIClient_AllowPrivate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	guard := NewSSRFGuard(true)
	client := guard.NewAPIClient(5 * time.Second)

	resp, err := client.Get(ts.URL)
	if err != nil {
		t.Fatalf("expected loopback request to succeed, got %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

// TestValidateURL_AllowPrivate はプライベートアドレス許可時もスキーム検証は行われることをテストする。
func TestValidateURL_AllowPrivate(t *testing.T) {
	guard := NewSSRFGuard(true)

	if err := guard.ValidateURL("http://127.0.0.1:3000/api"); err != nil {
		t.Errorf("expected loopback to be allowed, got %v", err)
	}
	if err := guard.ValidateURL("http://localhost/api"); err != nil {
		t.Errorf("expected localhost to be allowed, got %v", err)
	}
	if err := guard.ValidateURL("file:///etc/passwd"); err == nil {
		t.Error("expected file scheme to be rejected even when private addresses are allowed")
	}
}
