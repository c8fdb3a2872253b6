package parser

import (
	"regexp"
	"sort"

	"github.com/veilcrawl/veilcrawl/internal/types"
)

var (
	emailRE = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	onionRE = regexp.MustCompile(`[a-z2-7]{56}\.onion`)

	i2pRE = regexp.MustCompile(`[a-zA-Z0-9\-]+\.i2p`)

	btcLegacyRE = regexp.MustCompile(`\b[13][a-km-zA-HJ-NP-Z1-9]{25,34}\b`)

	btcBech32RE = regexp.MustCompile(`\bbc1[a-zA-HJ-NP-Z0-9]{25,89}\b`)

	moneroRE = regexp.MustCompile(`\b4[0-9AB][1-9A-HJ-NP-Za-km-z]{93}\b`)

	ethRE = regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b`)

	phoneRE = regexp.MustCompile(`\+[1-9]\d{6,14}`)

	// PGP fingerprints need a nearby "key fingerprint"/"PGP:" marker so
	// random hex and blockchain hashes don't match.
	pgpRE = regexp.MustCompile(`(?i)(?:key\s+fingerprint|pgp|fingerprint)[:\s=]+([0-9A-Fa-f]{4}\s?[0-9A-Fa-f]{4}\s?[0-9A-Fa-f]{4}\s?[0-9A-Fa-f]{4}\s?[0-9A-Fa-f]{4}\s?[0-9A-Fa-f]{4}\s?[0-9A-Fa-f]{4}\s?[0-9A-Fa-f]{4}\s?[0-9A-Fa-f]{4}\s?[0-9A-Fa-f]{4})`)

	usernameRE = regexp.MustCompile(`@[a-zA-Z][a-zA-Z0-9_]{2,49}\b`)
)

// ExtractEntities runs every entity regex over text. Each category is
// returned sorted and deduplicated, so repeated extraction of the same text
// is deterministic.
func ExtractEntities(text string) types.ExtractedEntities {
	bitcoin := findUnique(btcLegacyRE, text)
	bitcoin = append(bitcoin, findUnique(btcBech32RE, text)...)

	return types.ExtractedEntities{
		Emails:            findUnique(emailRE, text),
		OnionAddresses:    findUnique(onionRE, text),
		I2PAddresses:      findUnique(i2pRE, text),
		BitcoinAddresses:  bitcoin,
		MoneroAddresses:   findUnique(moneroRE, text),
		EthereumAddresses: findUnique(ethRE, text),
		PhoneNumbers:      findUnique(phoneRE, text),
		PGPFingerprints:   findUniqueCapture(pgpRE, text),
		Usernames:         findUnique(usernameRE, text),
	}
}

func findUnique(re *regexp.Regexp, text string) []string {
	return sortDedup(re.FindAllString(text, -1))
}

func findUniqueCapture(re *regexp.Regexp, text string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if len(m) > 1 && m[1] != "" {
			out = append(out, m[1])
		}
	}
	return sortDedup(out)
}

func sortDedup(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	sort.Strings(in)
	out := in[:1]
	for _, s := range in[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}

// mergeEntities unions two extraction results, keeping each category sorted
// and deduplicated.
func mergeEntities(a, b types.ExtractedEntities) types.ExtractedEntities {
	return types.ExtractedEntities{
		Emails:            sortDedup(append(a.Emails, b.Emails...)),
		OnionAddresses:    sortDedup(append(a.OnionAddresses, b.OnionAddresses...)),
		I2PAddresses:      sortDedup(append(a.I2PAddresses, b.I2PAddresses...)),
		BitcoinAddresses:  sortDedup(append(a.BitcoinAddresses, b.BitcoinAddresses...)),
		MoneroAddresses:   sortDedup(append(a.MoneroAddresses, b.MoneroAddresses...)),
		EthereumAddresses: sortDedup(append(a.EthereumAddresses, b.EthereumAddresses...)),
		PhoneNumbers:      sortDedup(append(a.PhoneNumbers, b.PhoneNumbers...)),
		PGPFingerprints:   sortDedup(append(a.PGPFingerprints, b.PGPFingerprints...)),
		Usernames:         sortDedup(append(a.Usernames, b.Usernames...)),
	}
}
