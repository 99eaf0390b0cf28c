// Package codec owns typed field transcoding over a forward-only cursor.
//
// Every Codec consumes exactly the byte span its type implies: fixed-width
// integers are big-endian, VarInt/VarLong use 7-bit continuation groups,
// strings and byte arrays carry a VarInt length prefix. Decode followed by
// Encode of a well-formed span reproduces it byte for byte.
package codec
