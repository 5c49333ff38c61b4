package robokassa

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/resumehub/billing/internal/config"
	invoicedomain "github.com/resumehub/billing/internal/invoice/domain"
	paymentdomain "github.com/resumehub/billing/internal/payment/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestFormatSum(t *testing.T) {
	assert.Equal(t, "100", FormatSum(decimal.NewFromInt(100)))
	assert.Equal(t, "100", FormatSum(decimal.RequireFromString("100.00")))
	assert.Equal(t, "99.5", FormatSum(decimal.RequireFromString("99.50")))
	assert.Equal(t, "99.55", FormatSum(decimal.RequireFromString("99.55")))
	assert.Equal(t, "0.5", FormatSum(decimal.RequireFromString("0.50")))
}

func TestInitSignature(t *testing.T) {
	got := InitSignature("shop", "100", 42, "pw1", nil)
	assert.Equal(t, md5hex("shop:100:42:pw1"), got)
}

func TestResultSignatureSortsShpParams(t *testing.T) {
	shp := map[string]string{
		"Shp_user_id":    "7",
		"Shp_invoice_id": "abc",
	}
	got := ResultSignature("99.5", 42, "pw2", shp)
	assert.Equal(t, md5hex("99.5:42:pw2:Shp_invoice_id=abc:Shp_user_id=7"), got)
}

func TestSignatureEqualIgnoresCase(t *testing.T) {
	assert.True(t, SignatureEqual("ABCDEF", "abcdef"))
	assert.False(t, SignatureEqual("abcdef", "abcde0"))
}

func TestVerify(t *testing.T) {
	p := New(config.Config{
		MerchantLogin: "shop",
		Password1:     "pw1",
		Password2:     "pw2",
	}, zaptest.NewLogger(t))

	shp := map[string]string{"Shp_invoice_id": "abc", "Shp_user_id": "7"}
	w := paymentdomain.Webhook{
		OutSumRaw:      "100",
		InvID:          42,
		ShpParams:      shp,
		SignatureValue: strings.ToUpper(md5hex("100:42:pw2:Shp_invoice_id=abc:Shp_user_id=7")),
	}
	assert.True(t, p.Verify(w))

	w.SignatureValue = md5hex("100:42:wrong:Shp_invoice_id=abc:Shp_user_id=7")
	assert.False(t, p.Verify(w))
}

func TestBuildPaymentURL(t *testing.T) {
	p := New(config.Config{
		MerchantLogin: "shop",
		Password1:     "pw1",
		Password2:     "pw2",
		IsTestMode:    true,
	}, zaptest.NewLogger(t))

	inv := &invoicedomain.Invoice{
		ID:         uuid.New(),
		GatewayRef: 42,
		UserID:     7,
		Amount:     decimal.RequireFromString("100.00"),
	}
	raw, err := p.BuildPaymentURL(inv)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "auth.robokassa.ru", u.Host)

	q := u.Query()
	assert.Equal(t, "shop", q.Get("MerchantLogin"))
	assert.Equal(t, "100", q.Get("OutSum"))
	assert.Equal(t, "42", q.Get("InvId"))
	assert.Equal(t, "1", q.Get("IsTest"))
	assert.Equal(t, inv.ID.String(), q.Get("Shp_invoice_id"))
	assert.Equal(t, "7", q.Get("Shp_user_id"))

	expected := md5hex("shop:100:42:pw1:Shp_invoice_id=" + inv.ID.String() + ":Shp_user_id=7")
	assert.Equal(t, expected, q.Get("SignatureValue"))
}
