package resources

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryDecode(t *testing.T) {
	assert := assert.New(t)

	body := `{
		"newNonce": "https://ca/acme/new-nonce",
		"newAccount": "https://ca/acme/new-account",
		"newOrder": "https://ca/acme/new-order",
		"keyChange": "https://ca/acme/key-change",
		"meta": {
			"termsOfService": "https://ca/terms"
		}
	}`

	var dir Directory
	require.NoError(t, json.Unmarshal([]byte(body), &dir))

	assert.Equal("https://ca/acme/new-nonce", dir.NewNonce)
	assert.Equal("https://ca/acme/new-account", dir.NewAccount)
	assert.Equal("https://ca/acme/new-order", dir.NewOrder)
	assert.Equal("https://ca/acme/key-change", dir.KeyChange)
	assert.Equal("https://ca/terms", dir.Meta.TermsOfService)
	assert.NoError(dir.Validate())
}

func TestDirectoryValidate(t *testing.T) {
	full := Directory{
		NewNonce:   "https://ca/acme/new-nonce",
		NewAccount: "https://ca/acme/new-account",
		NewOrder:   "https://ca/acme/new-order",
	}

	testCases := []struct {
		name        string
		mutate      func(*Directory)
		expectedErr string
	}{
		{
			name:   "complete directory",
			mutate: func(d *Directory) {},
		},
		{
			name:        "missing newNonce",
			mutate:      func(d *Directory) { d.NewNonce = "" },
			expectedErr: `missing required "newNonce" entry`,
		},
		{
			name:        "missing newAccount",
			mutate:      func(d *Directory) { d.NewAccount = "" },
			expectedErr: `missing required "newAccount" entry`,
		},
		{
			name:        "missing newOrder",
			mutate:      func(d *Directory) { d.NewOrder = "" },
			expectedErr: `missing required "newOrder" entry`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := full
			tc.mutate(&dir)
			err := dir.Validate()
			if tc.expectedErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErr)
			}
		})
	}
}
