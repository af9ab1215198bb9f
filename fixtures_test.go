package ormpack_test

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AndrewDonelson/ormpack"
)

// Payment covers the four extension-free field kinds plus a uuid key.
type Payment struct {
	ID     uuid.UUID `ormpack:"primary_key"`
	Name   string
	Amount decimal.Decimal
	When   time.Time
}

func (*Payment) SerializeOptions() ormpack.Options { return ormpack.Options{} }

// Draft leaves Extra out of its wire form.
type Draft struct {
	ID    int64
	Title string
	Extra string
}

func (Draft) SerializeOptions() ormpack.Options {
	return ormpack.Options{Fields: []string{"title"}}
}

// Reordered lists its fields out of declaration order.
type Reordered struct {
	A  string
	ID int
	B  string
}

func (Reordered) SerializeOptions() ormpack.Options {
	return ormpack.Options{Fields: []string{"b", "id", "a"}}
}

// Account has one nullable field of every kind.
type Account struct {
	ID      int64
	Nick    *string
	Balance *decimal.Decimal
	Seen    *time.Time
	Ext     *uuid.UUID
}

func (Account) SerializeOptions() ormpack.Options { return ormpack.Options{} }

// Base is embedded by Customer.
type Base struct {
	ID      int64 `ormpack:"pk"`
	Created time.Time
}

// Customer flattens Base, renames a field and skips another.
type Customer struct {
	Base
	Email    string `ormpack:"name:email_address"`
	Password string `ormpack:"-"`
	Tags     []string
	Meta     map[string]int
	Address  Address
	internal int
}

func (Customer) SerializeOptions() ormpack.Options { return ormpack.Options{} }

// Address is a plain struct field, not a record.
type Address struct {
	Street string
	Zip    int
}

type Author struct {
	ID   int64
	Name string
}

func (Author) SerializeOptions() ormpack.Options { return ormpack.Options{} }

// Book inlines its author when loaded.
type Book struct {
	ID     int64
	Title  string
	Author ormpack.Ref[Author]
}

func (Book) SerializeOptions() ormpack.Options { return ormpack.Options{} }

// Citation always writes its author as an id.
type Citation struct {
	ID     int64
	Author ormpack.Ref[Author]
}

func (Citation) SerializeOptions() ormpack.Options {
	return ormpack.Options{PKOnly: []string{"author"}}
}

// Biography always inlines its author.
type Biography struct {
	ID      int64
	Subject ormpack.Ref[Author]
}

func (Biography) SerializeOptions() ormpack.Options {
	return ormpack.Options{LoadRelated: true}
}

// Label declares no options, so references to it are ids only.
type Label struct {
	ID   string
	Text string
}

type Post struct {
	ID    int64
	Label ormpack.Ref[Label]
}

func (Post) SerializeOptions() ormpack.Options { return ormpack.Options{} }

// Node refers to its own type.
type Node struct {
	ID     int64
	Parent ormpack.Ref[Node]
}

func (Node) SerializeOptions() ormpack.Options { return ormpack.Options{} }

// Plain declares no options.
type Plain struct {
	ID int64
}

// Ledger keeps extension values inside slices, maps and a plain struct.
type Ledger struct {
	ID     int64
	Times  []time.Time
	Prices map[string]decimal.Decimal
	Owners []uuid.UUID
	Window Window
}

func (Ledger) SerializeOptions() ormpack.Options { return ormpack.Options{} }

// Window is a plain struct holding extension values.
type Window struct {
	Opens  time.Time
	Closes *time.Time
	Limit  decimal.Decimal
	Notes  []string `msgpack:"notes"`
}

// Blob's tuple ("UUID", 16 bytes) has the shape of a UUID tag.
type Blob struct {
	ID   string
	Data []byte
}

func (Blob) SerializeOptions() ormpack.Options { return ormpack.Options{} }

var generatedCalls atomic.Int64

// Generated carries hand-written tuple methods in the generated shape.
type Generated struct {
	ID    int64
	Name  string
	Price decimal.Decimal
}

func (Generated) SerializeOptions() ormpack.Options { return ormpack.Options{} }

func (m *Generated) MarshalTuple(c *ormpack.Codec) ([]any, error) {
	generatedCalls.Add(1)
	w, err := c.TupleWriter(m, "id", "name", "price")
	if err != nil {
		return nil, err
	}
	w.Field(0, m.ID)
	w.Field(1, m.Name)
	w.Field(2, m.Price)
	return w.Tuple()
}

func (m *Generated) UnmarshalTuple(c *ormpack.Codec, tuple []any) error {
	generatedCalls.Add(1)
	r, err := c.TupleReader(m, tuple, "id", "name", "price")
	if err != nil {
		return err
	}
	r.Field(0, &m.ID)
	r.Field(1, &m.Name)
	r.Field(2, &m.Price)
	return r.Err()
}

var scenarioID = uuid.UUID{
	0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
	0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10,
}

func scenarioPayment() *Payment {
	return &Payment{
		ID:     scenarioID,
		Name:   "Coolio",
		Amount: decimal.RequireFromString("20.22"),
		When:   time.Date(2021, 3, 4, 5, 6, 7, 123456000, time.UTC),
	}
}
