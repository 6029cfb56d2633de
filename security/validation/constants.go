package validation

const (
	MaxShortTextLength = 128

	// Wallet addresses are base58 of a public key or key hash.
	MinAddressBytes = 16
	MaxAddressBytes = 64

	MaxIdempotencyKeyLength = 128
	MaxMemoLength           = 128

	DefaultRequestBodyLimit = 64 * 1024 // 64 KB

	SenderField         = "sender"
	ReceiverField       = "receiver"
	AddressField        = "address"
	AmountField         = "amount"
	MemoField           = "memo"
	IdempotencyKeyField = "idempotency_key"
)

var InjectionPatterns = []string{
	"${{", "{{", "}}", "${", "#{", "{%", "%}", "{{{", // templates/SSTI
	"%0a", "%0d", "%0a%0d", "%00", "%27", "%22", "%3c", "%3e", // encoded attacks (decode first)
	"${jndi:", "ldap://", "ldaps://", // JNDI/ldap
	"eval(", "exec(", "system(", "popen(", // dangerous funcs
}
