// Package protocol implements the SSO transport of the QQ client protocol.
//
// # Frame Format
//
// Every packet on the wire is a self-delimited frame. All integers are
// big-endian and every variable field carries an explicit length, so bytes
// following a frame are never consumed:
//   - Length (4 bytes): frame length including this field
//   - PacketType (4 bytes): 0x0A login, 0x0B simple
//   - EncryptType (1 byte): 0 none, 1 session key (D2Key), 2 empty key
//   - Login packets: D2 ticket (4-byte inclusive length)
//   - Simple packets: sequence id (4 bytes)
//   - Zero byte
//   - Uin (4-byte inclusive length, decimal string)
//   - SSO frame, encrypted according to EncryptType
//
// # SSO Frame
//
// The SSO frame carries a head and the body, each behind a 4-byte inclusive
// length. The head holds the sequence id, the server return code, a
// diagnostic message, the command name, the session id and a compression
// flag. Login heads also carry the application ids, TGT, IMEI, ksid and the
// build string; decoders skip whatever head bytes they do not understand.
//
// # Encryption
//
// Encrypted frames use the chained 16-round TEA cipher from pkg/crypto,
// keyed either with the D2Key negotiated at login or with 16 zero bytes.
//
// # Usage Example
//
//	t := protocol.NewTransport(profile, protocol.IPad.Version())
//	frame, err := t.EncodePacket(&protocol.Packet{
//	    Type:        protocol.PacketTypeLogin,
//	    EncryptType: protocol.EncryptEmptyKey,
//	    SeqID:       seq,
//	    CommandName: "wtlogin.login",
//	    Body:        body,
//	})
//
//	// Send frame, then decode the reply
//	reply, err := t.DecodePacket(response)
package protocol
