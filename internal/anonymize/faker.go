package anonymize

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Generator produces a synthetic value shaped like original.
type Generator func(rng *rand.Rand, original string) string

// Faker draws synthetic values per entity type from a seeded source.
type Faker struct {
	mu         sync.Mutex
	rng        *rand.Rand
	generators map[string]Generator
}

// NewFaker creates a Faker with the default generators. A zero seed uses
// the current time.
func NewFaker(seed int64) *Faker {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Faker{
		rng:        rand.New(rand.NewSource(seed)),
		generators: defaultGenerators(),
	}
}

// Supports reports whether entityType has a generator.
func (f *Faker) Supports(entityType string) bool {
	_, ok := f.generators[entityType]
	return ok
}

// Fake returns a synthetic value for original. ok is false for entity
// types without a generator.
func (f *Faker) Fake(entityType, original string) (string, bool) {
	gen, ok := f.generators[entityType]
	if !ok {
		return "", false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return gen(f.rng, original), true
}

func defaultGenerators() map[string]Generator {
	return map[string]Generator{
		EntityEmail:        fakeEmail,
		EntityPhone:        fakePhone,
		EntitySSN:          fakeSSN,
		EntityCreditCard:   fakeCreditCard,
		EntityIP:           fakeIP,
		EntityPerson:       fakePerson,
		EntityLocation:     fakeLocation,
		EntityOrganization: fakeOrganization,
		EntityURL:          fakeURL,
		EntityUUID:         fakeUUID,
		EntityIBAN:         fakeIBAN,
		EntityCrypto:       fakeCrypto,
	}
}

var (
	firstNames = []string{
		"John", "Jane", "Michael", "Sarah", "David", "Emily", "James", "Emma",
		"Wei", "Mei", "Hiroshi", "Yuki", "Raj", "Priya", "Amara", "Kofi",
		"Yusuf", "Fatima", "Carlos", "Maria", "Dmitri", "Anna",
	}
	lastNames = []string{
		"Doe", "Smith", "Johnson", "Brown", "Davis", "Wilson", "Chen", "Wang",
		"Kim", "Nguyen", "Tanaka", "Patel", "Okonkwo", "Mensah", "Hassan",
		"Garcia", "Lopez", "Ivanov", "Kowalski", "Murphy",
	}
	cities = []string{
		"Springfield", "Riverside", "Greenville", "Fairview", "Madison",
		"Georgetown", "Kingston", "Newport", "Halifax", "Bristol", "Oxford",
	}
	companySuffixes = []string{"Inc", "LLC", "Group", "Holdings", "Labs", "Partners"}
	// RFC 2606 reserved domains only.
	fakeDomains = []string{"example.com", "example.org", "example.net", "test.com", "test.org"}
)

func pick(rng *rand.Rand, xs []string) string {
	return xs[rng.Intn(len(xs))]
}

func fakeEmail(rng *rand.Rand, _ string) string {
	return fmt.Sprintf("%s.%s@%s",
		strings.ToLower(pick(rng, firstNames)), strings.ToLower(pick(rng, lastNames)), pick(rng, fakeDomains))
}

func fakePhone(rng *rand.Rand, _ string) string {
	formats := []string{"%d-%d-%d", "%d.%d.%d", "(%d) %d-%d"}
	return fmt.Sprintf(pick(rng, formats), 200+rng.Intn(800), 200+rng.Intn(800), 1000+rng.Intn(9000))
}

func fakeSSN(rng *rand.Rand, _ string) string {
	return fmt.Sprintf("%03d-%02d-%04d", 100+rng.Intn(565), 10+rng.Intn(90), 1000+rng.Intn(9000))
}

func fakeCreditCard(rng *rand.Rand, original string) string {
	digits := make([]int, 16)
	digits[0] = 4
	for i := 1; i < 15; i++ {
		digits[i] = rng.Intn(10)
	}
	digits[15] = luhnCheckDigit(digits[:15])

	var b strings.Builder
	sep := ""
	if strings.ContainsAny(original, "- ") {
		sep = string(original[strings.IndexAny(original, "- ")])
	}
	for i, d := range digits {
		if i > 0 && i%4 == 0 {
			b.WriteString(sep)
		}
		b.WriteByte(byte('0' + d))
	}
	return b.String()
}

func luhnCheckDigit(payload []int) int {
	sum := 0
	double := true
	for i := len(payload) - 1; i >= 0; i-- {
		d := payload[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}

func fakeIP(rng *rand.Rand, _ string) string {
	// 203.0.113.0/24 is reserved for documentation.
	return fmt.Sprintf("203.0.113.%d", 1+rng.Intn(254))
}

func fakePerson(rng *rand.Rand, original string) string {
	if !strings.Contains(strings.TrimSpace(original), " ") {
		return pick(rng, firstNames)
	}
	return pick(rng, firstNames) + " " + pick(rng, lastNames)
}

func fakeLocation(rng *rand.Rand, _ string) string {
	return pick(rng, cities)
}

func fakeOrganization(rng *rand.Rand, _ string) string {
	return pick(rng, lastNames) + " " + pick(rng, companySuffixes)
}

func fakeURL(rng *rand.Rand, _ string) string {
	return fmt.Sprintf("https://%s/%s", pick(rng, fakeDomains), strings.ToLower(pick(rng, lastNames)))
}

func fakeUUID(rng *rand.Rand, _ string) string {
	b := make([]byte, 16)
	for i := range b {
		b[i] = byte(rng.Intn(256))
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}

func fakeIBAN(rng *rand.Rand, _ string) string {
	var b strings.Builder
	for i := 0; i < 18; i++ {
		b.WriteByte(byte('0' + rng.Intn(10)))
	}
	// Check digits are not computed; the value only has to look like an IBAN.
	return "DE00" + b.String()
}

func fakeCrypto(rng *rand.Rand, _ string) string {
	const alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
	var b strings.Builder
	b.WriteByte('1')
	for i := 0; i < 33; i++ {
		b.WriteByte(alphabet[rng.Intn(len(alphabet))])
	}
	return b.String()
}
