package immutable

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"github.com/ValentinKolb/dFlux/lib/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Hashing Interfaces
// --------------------------------------------------------------------------

// Hasher is implemented by values that provide their own structural hash.
// Values that are equal according to Equaler must return the same hash.
type Hasher interface {
	Hash() uint32
}

// Equaler is implemented by values that provide their own structural equality.
type Equaler interface {
	Equals(other any) bool
}

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	hashNil   uint32 = 0x42108422
	hashTrue  uint32 = 0x42108421
	hashFalse uint32 = 0x42108420

	// strings at least this long are memoized in stringHashCache
	stringHashCacheMinLen = 16
	// the memo is dropped entirely once it holds this many strings
	stringHashCacheMaxSize = 255
)

// stringHashCache memoizes hashes of long strings (typically store ids and
// action types that are hashed on every dispatch). It is shared by all
// reactors of a process and therefore needs to be safe for concurrent use.
var stringHashCache = xsync.NewMapOf[string, uint32]()

// --------------------------------------------------------------------------
// Hash Functions
// --------------------------------------------------------------------------

// Hash reduces any value to a non-negative 31 bit integer.
// Numbers hash by numeric value (int(1), int64(1) and float64(1) hash equally),
// collections hash structurally and Hasher implementations hash themselves.
func Hash(v any) uint32 {
	switch t := v.(type) {
	case nil:
		return hashNil
	case bool:
		if t {
			return hashTrue
		}
		return hashFalse
	case string:
		return hashString(t)
	case Hasher:
		return t.Hash() & 0x7fffffff
	}

	if n, ok := toNumber(v); ok {
		return n.hash()
	}

	return hashReflect(v)
}

// hashString hashes a string with FNV-1a, memoizing long strings.
func hashString(s string) uint32 {
	if len(s) < stringHashCacheMinLen {
		return util.Hash31(util.HashString(s, 0))
	}

	if h, ok := stringHashCache.Load(s); ok {
		return h
	}

	h := util.Hash31(util.HashString(s, 0))
	if stringHashCache.Size() >= stringHashCacheMaxSize {
		stringHashCache.Clear()
	}
	stringHashCache.Store(s, h)
	return h
}

// hashInt folds a 64 bit integer into 31 bits.
func hashInt(i uint64) uint32 {
	return smi(uint32(i>>32) ^ uint32(i))
}

// hashReflect is the fallback for values without a dedicated hash.
// Pointer-like values hash by identity, everything else by its printed form.
func hashReflect(v any) uint32 {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return hashInt(uint64(rv.Pointer()))
	default:
		return hashString(fmt.Sprintf("%T:%#v", v, v))
	}
}

// smi keeps a hash within 31 bits while folding in the sign bit.
func smi(h uint32) uint32 {
	return ((h >> 1) & 0x40000000) | (h & 0x3fffffff)
}

// hashMerge combines two hashes in an order dependent way.
func hashMerge(a, b uint32) uint32 {
	return a ^ (b + 0x9e3779b9 + (a << 6) + (a >> 2))
}

// murmurHashOfSize finalizes a collection hash (murmur3 mixing steps).
func murmurHashOfSize(size int, h uint32) uint32 {
	h *= 0xcc9e2d51
	h = ((h << 15) | (h >> 17)) * 0x1b873593
	h = ((h << 13) | (h >> 19)) * 5
	h = (h + 0xe6546b64) ^ uint32(size)
	h = (h ^ (h >> 16)) * 0x85ebca6b
	h = (h ^ (h >> 13)) * 0xc2b2ae35
	return smi(h ^ (h >> 16))
}

// --------------------------------------------------------------------------
// Numbers
// --------------------------------------------------------------------------

// number is the normalized form of every numeric Go type.
// Integral values are kept as int64, everything else as float64.
type number struct {
	isInt bool
	i     int64
	f     float64
}

func (n number) hash() uint32 {
	if n.isInt {
		return hashInt(uint64(n.i))
	}
	return hashInt(math.Float64bits(n.f))
}

func (n number) equal(o number) bool {
	if n.isInt && o.isInt {
		return n.i == o.i
	}
	return n.float() == o.float()
}

func (n number) float() float64 {
	if n.isInt {
		return float64(n.i)
	}
	return n.f
}

func fromFloat(f float64) number {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return number{isInt: true, i: int64(f)}
	}
	return number{f: f}
}

// toNumber normalizes numeric values (including json.Number).
func toNumber(v any) (number, bool) {
	switch t := v.(type) {
	case int:
		return number{isInt: true, i: int64(t)}, true
	case int8:
		return number{isInt: true, i: int64(t)}, true
	case int16:
		return number{isInt: true, i: int64(t)}, true
	case int32:
		return number{isInt: true, i: int64(t)}, true
	case int64:
		return number{isInt: true, i: t}, true
	case uint:
		return fromUint(uint64(t)), true
	case uint8:
		return number{isInt: true, i: int64(t)}, true
	case uint16:
		return number{isInt: true, i: int64(t)}, true
	case uint32:
		return number{isInt: true, i: int64(t)}, true
	case uint64:
		return fromUint(t), true
	case float32:
		return fromFloat(float64(t)), true
	case float64:
		return fromFloat(t), true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return number{isInt: true, i: i}, true
		}
		if f, err := t.Float64(); err == nil {
			return fromFloat(f), true
		}
	}
	return number{}, false
}

func fromUint(u uint64) number {
	if u <= math.MaxInt64 {
		return number{isInt: true, i: int64(u)}
	}
	return number{f: float64(u)}
}
