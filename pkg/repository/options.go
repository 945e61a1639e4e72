package repository

type OrderType string

const (
	OrderTypeAsc  OrderType = "ASC"
	OrderTypeDesc OrderType = "DESC"
)

type WhereType map[string]interface{}
type SelectType []string
type Order map[string]OrderType

type FindOptions struct {
	Select SelectType
	Where  WhereType
	// OrWhere is OR-combined with Where; used for handle-or-tag lookups.
	OrWhere WhereType
	Order   Order
	Limit   uint
	Offset  uint
}

func Select(fields ...string) SelectType {
	return fields
}
