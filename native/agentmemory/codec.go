package agentmemory

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Discriminator is the 8-byte type tag leading every account and
// instruction payload.
type Discriminator [8]byte

// ClosedDiscriminator marks an account that was closed by the program. It is
// never a valid tag for any account type.
var ClosedDiscriminator = Discriminator{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func accountDiscriminator(name string) Discriminator {
	var d Discriminator
	copy(d[:], bin.Sighash(bin.SIGHASH_ACCOUNT_NAMESPACE, name))
	return d
}

func instructionDiscriminator(name string) Discriminator {
	var d Discriminator
	copy(d[:], bin.Sighash(bin.SIGHASH_GLOBAL_NAMESPACE, name))
	return d
}

// reader wraps a borsh decoder and keeps the first error so field lists can
// be decoded without checking each read.
type reader struct {
	dec *bin.Decoder
	err error
}

func newReader(dec *bin.Decoder) *reader { return &reader{dec: dec} }

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint8()
	r.fail(err)
	return v
}

func (r *reader) boolean() bool {
	switch v := r.u8(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		r.fail(fmt.Errorf("invalid bool tag %d", v))
		return false
	}
}

// option reads a borsh Option tag.
func (r *reader) option() bool { return r.boolean() }

func (r *reader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint32(bin.LE)
	r.fail(err)
	return v
}

func (r *reader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint64(bin.LE)
	r.fail(err)
	return v
}

func (r *reader) i64() int64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadInt64(bin.LE)
	r.fail(err)
	return v
}

func (r *reader) fixed(dst []byte) {
	if r.err != nil {
		return
	}
	raw, err := r.dec.ReadNBytes(len(dst))
	if err != nil {
		r.fail(err)
		return
	}
	copy(dst, raw)
}

func (r *reader) pubkey() solana.PublicKey {
	var pk solana.PublicKey
	r.fixed(pk[:])
	return pk
}

// length reads a u32 collection length and rejects values above limit.
func (r *reader) length(limit int) int {
	n := r.u32()
	if r.err == nil && int(n) > limit {
		r.fail(fmt.Errorf("length %d exceeds %d", n, limit))
		return 0
	}
	return int(n)
}

func (r *reader) str(limit int) string {
	n := r.length(limit)
	if r.err != nil || n == 0 {
		return ""
	}
	buf := make([]byte, n)
	r.fixed(buf)
	return string(buf)
}

func (r *reader) optI64() *int64 {
	if !r.option() {
		return nil
	}
	v := r.i64()
	return &v
}

// writer is the encoding counterpart of reader.
type writer struct {
	enc *bin.Encoder
	err error
}

func newWriter(enc *bin.Encoder) *writer { return &writer{enc: enc} }

func (w *writer) do(fn func() error) {
	if w.err == nil {
		w.err = fn()
	}
}

func (w *writer) u8(v uint8)   { w.do(func() error { return w.enc.WriteUint8(v) }) }
func (w *writer) u32(v uint32) { w.do(func() error { return w.enc.WriteUint32(v, bin.LE) }) }
func (w *writer) u64(v uint64) { w.do(func() error { return w.enc.WriteUint64(v, bin.LE) }) }
func (w *writer) i64(v int64)  { w.do(func() error { return w.enc.WriteInt64(v, bin.LE) }) }
func (w *writer) fixed(b []byte) {
	w.do(func() error { return w.enc.WriteBytes(b, false) })
}

func (w *writer) boolean(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

func (w *writer) option(present bool) { w.boolean(present) }

func (w *writer) str(s string) {
	w.u32(uint32(len(s)))
	w.fixed([]byte(s))
}

func (w *writer) optI64(v *int64) {
	w.option(v != nil)
	if v != nil {
		w.i64(*v)
	}
}

// encodable is implemented by every borsh body in this package.
type encodable interface {
	MarshalWithEncoder(enc *bin.Encoder) error
}

type decodable interface {
	UnmarshalWithDecoder(dec *bin.Decoder) error
}

func marshal(v encodable) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := v.MarshalWithEncoder(bin.NewBorshEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeInstruction prefixes the borsh encoded args with the instruction
// discriminator.
func encodeInstruction(d Discriminator, args encodable) []byte {
	out := append([]byte(nil), d[:]...)
	if args == nil {
		return out
	}
	body, err := marshal(args)
	if err != nil {
		panic(fmt.Sprintf("agentmemory: encode instruction args: %v", err))
	}
	return append(out, body...)
}

func decodeArgs(data []byte, args decodable) error {
	if err := args.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return fmt.Errorf("%w: %v", ErrInstructionDidNotDeserialize, err)
	}
	return nil
}

// BindingMessage is the payload an identity signs to bind itself to agentID.
func BindingMessage(identity solana.PublicKey, agentID string) []byte {
	return []byte(identity.String() + ":" + agentID)
}

