// SPDX-License-Identifier: MIT

package urlx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHTTP(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://aprilslilpugs.com", "https://aprilslilpugs.com"},
		{"  HTTPS://AprilsLilPugs.COM/hls/test.m3u8 ", "https://aprilslilpugs.com/hls/test.m3u8"},
		{"http://127.0.0.1:3000/hls", "http://127.0.0.1:3000/hls"},
		{"http://[::1]:8080/", "http://[::1]:8080/"},
		{"https://bücher.example/hls", "https://xn--bcher-kva.example/hls"},
		{"https://aprilslilpugs.com./hls", "https://aprilslilpugs.com/hls"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			u, err := ParseHTTP(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, u.String())
		})
	}
}

func TestParseHTTP_Rejects(t *testing.T) {
	cases := map[string]error{
		"ftp://aprilslilpugs.com":          ErrScheme,
		"/hls/test.m3u8":                   ErrScheme,
		"https://user:pw@aprilslilpugs.com": ErrCredentials,
		"https://aprilslilpugs.com/#frag":  ErrFragment,
		"https://:443/hls":                 ErrNoHost,
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			_, err := ParseHTTP(in)
			assert.ErrorIs(t, err, want)
		})
	}

	_, err := ParseHTTP("https://bad_host!.example")
	assert.Error(t, err)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "https://hooks.example.com/api/events", Redact("https://user:pw@hooks.example.com/api/events?token=abc"))
	assert.Equal(t, "invalid-url-redacted", Redact("http://[::1"))
}
