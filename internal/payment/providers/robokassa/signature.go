package robokassa

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatSum renders an amount the way the gateway signs it: trailing
// zeros stripped, so 100.00 becomes "100" and 99.50 becomes "99.5".
func FormatSum(amount decimal.Decimal) string {
	s := amount.StringFixed(2)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}

// sign produces the lowercase MD5 hex of base parts joined by ':',
// followed by the Shp_* parameters sorted alphabetically as "k=v".
func sign(base []string, shp map[string]string) string {
	parts := append([]string{}, base...)
	keys := make([]string, 0, len(shp))
	for k := range shp {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, shp[k]))
	}
	sum := md5.Sum([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:])
}

// InitSignature signs an outgoing payment link:
// MD5(MerchantLogin:OutSum:InvId:Password1[:Shp...]).
func InitSignature(merchantLogin, outSum string, invID int64, password1 string, shp map[string]string) string {
	return sign([]string{merchantLogin, outSum, fmt.Sprintf("%d", invID), password1}, shp)
}

// ResultSignature verifies an incoming webhook:
// MD5(OutSum:InvId:Password2[:Shp...]).
func ResultSignature(outSum string, invID int64, password2 string, shp map[string]string) string {
	return sign([]string{outSum, fmt.Sprintf("%d", invID), password2}, shp)
}

// SignatureEqual compares signatures case-insensitively.
func SignatureEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}
