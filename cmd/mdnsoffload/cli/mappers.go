package cli

import (
	"reflect"

	"github.com/alecthomas/kong"
)

// mapper builds a Kong mapper from a parse function.
func mapper[T any](placeholder string, parse func(string) (T, error)) kong.MapperFunc {
	return func(ctx *kong.DecodeContext, target reflect.Value) error {
		var s string
		if err := ctx.Scan.PopValueInto(placeholder, &s); err != nil {
			return err
		}
		v, err := parse(s)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(v))
		return nil
	}
}

func appIDMapper() kong.MapperFunc { return mapper("app-id", ParseAppID) }

func resourceRecordMapper() kong.MapperFunc { return mapper("record", ParseResourceRecord) }

func onOffMapper() kong.MapperFunc { return mapper("on|off", ParseOnOff) }
