package antom

import (
	"sort"
)

type Method struct {
	Type     string
	Name     string
	Currency string
	Category string // wallet, card
	Country  string
}

var methods = map[string]Method{
	"GCASH":            {Type: "GCASH", Name: "GCash", Currency: "PHP", Category: "wallet", Country: "PH"},
	"MAYA":             {Type: "MAYA", Name: "Maya", Currency: "PHP", Category: "wallet", Country: "PH"},
	"SHOPEEPAY":        {Type: "SHOPEEPAY", Name: "ShopeePay", Currency: "PHP", Category: "wallet", Country: "PH"},
	"VISA":             {Type: "VISA", Name: "Visa", Currency: "PHP", Category: "card", Country: "GLOBAL"},
	"MASTERCARD":       {Type: "MASTERCARD", Name: "Mastercard", Currency: "PHP", Category: "card", Country: "GLOBAL"},
	"AMERICAN_EXPRESS": {Type: "AMERICAN_EXPRESS", Name: "American Express", Currency: "PHP", Category: "card", Country: "GLOBAL"},
	"GRABPAY":          {Type: "GRABPAY", Name: "GrabPay", Currency: "PHP", Category: "wallet", Country: "PH"},
	"PAYMAYA":          {Type: "PAYMAYA", Name: "PayMaya", Currency: "PHP", Category: "wallet", Country: "PH"},
}

// Methods 支付方式列表，按类型排序
func Methods() []Method {
	list := make([]Method, 0, len(methods))
	for _, m := range methods {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Type < list[j].Type })
	return list
}

func LookupMethod(methodType string) (Method, bool) {
	m, ok := methods[methodType]
	return m, ok
}

// IsCard 卡支付需要 paymentFactor.isAuthorization
func IsCard(methodType string) bool {
	if methodType == "CARD" {
		return true
	}
	m, ok := methods[methodType]
	return ok && m.Category == "card"
}
