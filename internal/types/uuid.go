package types

import (
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/teris-io/shortid"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex subs_01HZX3K9R6PZ3M2V8Q4T7B1C5D
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

var (
	sidGenerator *shortid.Shortid
	once         sync.Once
)

func initializeSID() {
	var err error
	sidGenerator, err = shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		panic("failed to initialize shortid generator: " + err.Error())
	}
}

// GenerateShortIDWithPrefix returns a short human readable id with a prefix.
// Total length is capped at 12 characters, e.g., `DO-XYZ12A8Q`.
func GenerateShortIDWithPrefix(prefix string) string {
	once.Do(initializeSID)

	id, err := sidGenerator.Generate()
	if err != nil {
		return ""
	}
	id = strings.ReplaceAll(id, "-", "")

	availableLen := 12 - len(prefix)
	if availableLen <= 0 {
		return ""
	}

	if len(id) > availableLen {
		id = id[:availableLen]
	}

	return strings.ToUpper(fmt.Sprintf("%s%s", prefix, id))
}

const (
	UUID_PREFIX_SUBSCRIPTION       = "subs"
	UUID_PREFIX_DAILY_ORDER        = "dord"
	UUID_PREFIX_PAYMENT            = "pay"
	UUID_PREFIX_WALLET             = "wallet"
	UUID_PREFIX_WALLET_TRANSACTION = "wtxn"
	UUID_PREFIX_PRODUCT            = "prod"
	UUID_PREFIX_SETTING            = "setting"
	UUID_PREFIX_FREEZE             = "frz"
	UUID_PREFIX_SWAP               = "swap"
	UUID_PREFIX_JOB                = "job"
)

const (
	SHORT_ID_PREFIX_DAILY_ORDER = "DO-"
)
