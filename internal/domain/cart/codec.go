package cart

import (
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Encode writes the display form of the item: rowId, id, name, qty, price,
// options, tax, isSaved, subTotal.
func (i *Item) Encode(e *jx.Encoder) {
	e.ObjStart()
	i.encodeFields(e)
	e.ObjEnd()
}

// EncodeWithModel is Encode plus the resolved associated record under
// "model". A nil model is omitted.
func (i *Item) EncodeWithModel(e *jx.Encoder, model any) error {
	var raw []byte
	if model != nil {
		b, err := json.Marshal(model)
		if err != nil {
			return errors.Wrap(err, "marshal model")
		}
		raw = b
	}

	e.ObjStart()
	i.encodeFields(e)
	if raw != nil {
		e.FieldStart("model")
		e.Raw(raw)
	}
	e.ObjEnd()
	return nil
}

func (i *Item) encodeFields(e *jx.Encoder) {
	e.FieldStart("rowId")
	e.Str(i.rowID)
	e.FieldStart("id")
	e.Str(i.id)
	e.FieldStart("name")
	e.Str(i.name)
	e.FieldStart("qty")
	e.Int(i.qty)
	e.FieldStart("price")
	e.Str(i.price.String())
	e.FieldStart("options")
	i.options.Encode(e)
	e.FieldStart("tax")
	e.Str(i.Tax().String())
	e.FieldStart("isSaved")
	e.Bool(i.saved)
	e.FieldStart("subTotal")
	e.Str(i.Subtotal().String())
}

// EncodeContent serializes content for durable storage. Unlike Item.Encode
// it keeps the tax rate and model association.
func EncodeContent(c *Content) []byte {
	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range c.Items() {
		encodeStoredItem(e, item)
	}
	e.ArrEnd()
	e.ObjEnd()
	return e.Bytes()
}

func encodeStoredItem(e *jx.Encoder, i *Item) {
	e.ObjStart()
	e.FieldStart("rowId")
	e.Str(i.rowID)
	e.FieldStart("id")
	e.Str(i.id)
	e.FieldStart("name")
	e.Str(i.name)
	e.FieldStart("qty")
	e.Int(i.qty)
	e.FieldStart("price")
	e.Str(i.price.String())
	e.FieldStart("options")
	i.options.Encode(e)
	e.FieldStart("taxRate")
	e.Str(i.taxRate.String())
	if i.model != "" {
		e.FieldStart("model")
		e.Str(i.model)
	}
	e.FieldStart("isSaved")
	e.Bool(i.saved)
	e.ObjEnd()
}

// DecodeContent parses the output of EncodeContent. RowIDs are recomputed
// from id and options rather than trusted.
func DecodeContent(data []byte) (*Content, error) {
	content := NewContent()
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "items" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			item, err := decodeStoredItem(d)
			if err != nil {
				return err
			}
			content.Put(item)
			return nil
		})
	}); err != nil {
		return nil, errors.Wrap(err, "decode cart content")
	}
	return content, nil
}

func decodeStoredItem(d *jx.Decoder) (*Item, error) {
	item := &Item{options: Options{}}
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			item.id, err = d.Str()
		case "name":
			item.name, err = d.Str()
		case "qty":
			item.qty, err = d.Int()
		case "price":
			item.price, err = decodeDecimal(d)
		case "taxRate":
			item.taxRate, err = decodeDecimal(d)
		case "options":
			err = item.options.Decode(d)
		case "model":
			item.model, err = d.Str()
		case "isSaved":
			item.saved, err = d.Bool()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := validate(item.id, item.name, item.price); err != nil {
		return nil, err
	}
	if item.qty <= 0 {
		return nil, invalid("qty", "must be greater than 0")
	}
	item.rowID = RowID(item.id, item.options)
	return item, nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(string(n))
	}
}
