package transport

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/orb-momentum-bot/pkg/types"
	"github.com/orb-momentum-bot/pkg/xerrors"
	"github.com/shopspring/decimal"
)

// rawFrame is the wire shape of every inbound message: real-time pushes
// carry trnm="REAL" with a type code and a values map keyed by numeric field
// codes; registration acks carry trnm="REG"/"REMOVE" with a return code.
type rawFrame struct {
	TrName     string            `json:"trnm"`
	Type       string            `json:"type"`
	Item       string            `json:"item"`
	Values     map[string]string `json:"values"`
	ReturnCode any               `json:"return_code"`
	ReturnMsg  string            `json:"return_msg"`
}

const (
	typeTrade       = "0B"
	typeOrderBook   = "0D"
	typeHalt        = "1h"
	typeOrderUpdate = "00"
	typeBalance     = "04"
)

// parseFrame turns one decoded rawFrame into an Event, or returns an error
// wrapping xerrors.DataQualityError if a required field is missing or
// unparseable.
func parseFrame(f rawFrame) (ev Event, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("%w: %w", xerrors.DataQualityError, err)
		}
	}()
	switch f.TrName {
	case "REG", "REMOVE":
		return Event{Registration: &RegistrationAck{
			Registering: f.TrName == "REG",
			Accepted:    isAcceptedCode(f.ReturnCode),
			Message:     f.ReturnMsg,
		}}, nil

	case "REAL":
		symbol := types.NormalizeSymbol(f.Item)
		switch f.Type {
		case typeTrade:
			return parseTrade(symbol, f.Values)
		case typeOrderBook:
			return parseBook(symbol, f.Values)
		case typeHalt:
			return parseHalt(symbol, f.Values), nil
		case typeOrderUpdate:
			return parseOrderUpdate(f.Values)
		case typeBalance:
			return parseBalance(symbol, f.Values)
		default:
			return Event{}, fmt.Errorf("unknown realtime type %q", f.Type)
		}
	default:
		return Event{}, fmt.Errorf("unknown frame trnm %q", f.TrName)
	}
}

func isAcceptedCode(v any) bool {
	s := strings.TrimSpace(fmt.Sprintf("%v", v))
	n, err := strconv.Atoi(s)
	return err == nil && n == 0
}

// stripSign removes a leading +/- marker the broker uses to encode a signed
// quantity inside a text field.
func stripSign(s string) string {
	return strings.TrimLeft(strings.TrimSpace(s), "+-")
}

func signOf(s string) int64 {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		return -1
	}
	return 1
}

func parseTrade(symbol string, v map[string]string) (Event, error) {
	priceStr, vol, timeStr := v["10"], v["15"], v["20"]
	if priceStr == "" || vol == "" || timeStr == "" {
		return Event{}, fmt.Errorf("trade event missing required field for %s", symbol)
	}
	price, err := decimal.NewFromString(stripSign(priceStr))
	if err != nil {
		return Event{}, fmt.Errorf("trade event bad price %q: %w", priceStr, err)
	}
	signedVol, err := strconv.ParseInt(strings.TrimSpace(vol), 10, 64)
	if err != nil {
		return Event{}, fmt.Errorf("trade event bad volume %q: %w", vol, err)
	}
	eventTime, err := parseHHMMSS(timeStr)
	if err != nil {
		return Event{}, fmt.Errorf("trade event bad time %q: %w", timeStr, err)
	}
	return Event{Trade: &TradeEvent{Symbol: symbol, Price: price, SignedVol: signedVol, EventTime: eventTime}}, nil
}

func parseBook(symbol string, v map[string]string) (Event, error) {
	ask1, bid1 := v["41"], v["51"]
	if ask1 == "" || bid1 == "" {
		return Event{}, fmt.Errorf("book event missing ask1/bid1 for %s", symbol)
	}
	askPrice, err := decimal.NewFromString(stripSign(ask1))
	if err != nil {
		return Event{}, fmt.Errorf("book event bad ask1 %q: %w", ask1, err)
	}
	bidPrice, err := decimal.NewFromString(stripSign(bid1))
	if err != nil {
		return Event{}, fmt.Errorf("book event bad bid1 %q: %w", bid1, err)
	}
	return Event{Book: &BookEvent{
		Symbol:         symbol,
		Ask1:           askPrice,
		Bid1:           bidPrice,
		Ask1Volume:     parseOptionalInt(v["61"]),
		Bid1Volume:     parseOptionalInt(v["71"]),
		TotalAskVolume: parseOptionalInt(v["121"]),
		TotalBidVolume: parseOptionalInt(v["125"]),
	}}, nil
}

func parseHalt(symbol string, v map[string]string) Event {
	flag := v["9068"]
	return Event{Halt: &HaltEvent{
		Symbol:      symbol,
		Activated:   flag != "",
		HaltType:    v["9010"],
		Direction:   v["9069"],
		ReleaseTime: v["1224"],
	}}
}

func parseOrderUpdate(v map[string]string) (Event, error) {
	orderID := strings.TrimSpace(v["9203"])
	symbolRaw := strings.TrimSpace(v["9001"])
	if orderID == "" || symbolRaw == "" {
		return Event{}, fmt.Errorf("order update missing order id or symbol")
	}
	execPrice, _ := decimal.NewFromString(v["910"])
	return Event{OrderUpdate: &OrderUpdateEvent{
		OrderID:      orderID,
		Symbol:       types.NormalizeSymbol(symbolRaw),
		RawStatus:    strings.TrimSpace(v["913"]),
		ExecQuantity: parseOptionalInt(v["911"]),
		ExecPrice:    execPrice,
		UnfilledQty:  parseOptionalInt(v["902"]),
		OriginalQty:  parseOptionalInt(v["900"]),
	}}, nil
}

func parseBalance(symbol string, v map[string]string) (Event, error) {
	avgPrice, err := decimal.NewFromString(v["307"])
	if err != nil {
		avgPrice = decimal.Zero
	}
	return Event{Balance: &BalanceEvent{
		Symbol:   symbol,
		HeldSize: parseOptionalInt(v["930"]),
		AvgPrice: avgPrice,
	}}, nil
}

func parseOptionalInt(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(stripSign(s), 10, 64)
	if err != nil {
		return 0
	}
	if strings.HasPrefix(s, "-") {
		return -n
	}
	return n
}

// parseHHMMSS interprets a broker event time as today, in the process's
// local time zone (time.Now().Location()).
func parseHHMMSS(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) != 6 {
		return time.Time{}, fmt.Errorf("expected HHMMSS, got %q", s)
	}
	hh, err1 := strconv.Atoi(s[0:2])
	mm, err2 := strconv.Atoi(s[2:4])
	ss, err3 := strconv.Atoi(s[4:6])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, fmt.Errorf("non-numeric HHMMSS %q", s)
	}
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), hh, mm, ss, 0, now.Location()), nil
}
