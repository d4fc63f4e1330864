package cli

import (
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-mdnsoffload"
)

func TestParseAppID(t *testing.T) {
	tests := []struct {
		in      string
		want    mdnsoffload.AppID
		wantErr bool
	}{
		{in: "1234", want: 1234},
		{in: " 1234 ", want: 1234},
		{in: "101234", want: 1234},
		{in: "", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "app", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAppID(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Value)
		})
	}
}

func TestParseResourceRecord(t *testing.T) {
	r, err := ParseResourceRecord("atv.local. 120 IN A 192.0.2.1")
	require.NoError(t, err)
	a, ok := r.RR.(*dns.A)
	require.True(t, ok)
	assert.Equal(t, "atv.local.", a.Hdr.Name)
	assert.Equal(t, "192.0.2.1", a.A.String())

	r, err = ParseResourceRecord(`tv._googlecast._tcp.local. 4500 IN TXT "id=abc,fn=Living Room"`)
	require.NoError(t, err)
	assert.Equal(t, dns.TypeTXT, r.RR.Header().Rrtype)

	_, err = ParseResourceRecord("")
	assert.Error(t, err)
	_, err = ParseResourceRecord("atv.local. IN BOGUS x")
	assert.Error(t, err)
}

func TestParseOnOff(t *testing.T) {
	for _, s := range []string{"on", "ON", "true", "yes", "1"} {
		v, err := ParseOnOff(s)
		require.NoError(t, err, s)
		assert.True(t, v.Value, s)
	}
	for _, s := range []string{"off", "false", "no", "0"} {
		v, err := ParseOnOff(s)
		require.NoError(t, err, s)
		assert.False(t, v.Value, s)
	}
	_, err := ParseOnOff("maybe")
	assert.Error(t, err)
}
