package exchange

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// orderIDGenerator produces compact client order IDs. Binance caps client
// order IDs at 36 characters, so the format stays well under that:
// {price_int}_{side}_{timestamp}{seq}, e.g. 65000_B_1702468800001.
type orderIDGenerator struct {
	mu       sync.Mutex
	lastSec  int64
	sequence int
}

var idGen = &orderIDGenerator{}

func generateOrderID(price float64, side string, priceDecimals int) string {
	idGen.mu.Lock()
	defer idGen.mu.Unlock()

	multiplier := math.Pow(10, float64(priceDecimals))
	priceInt := int64(math.Round(price * multiplier))

	sideCode := "B"
	if side == "SELL" {
		sideCode = "S"
	}

	currentSec := time.Now().Unix()
	if currentSec != idGen.lastSec {
		idGen.lastSec = currentSec
		idGen.sequence = 0
	}
	idGen.sequence++

	return fmt.Sprintf("%d_%s_%d%03d", priceInt, sideCode, currentSec, idGen.sequence)
}
