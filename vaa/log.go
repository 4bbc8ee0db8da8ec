package vaa

import (
	"encoding/hex"

	"go.uber.org/zap"
)

// LogVAAFull logs all fields of a VAA for debugging
func LogVAAFull(logger *zap.Logger, v VAA) {
	logger.Debug("=== Full VAA Details ===",
		zap.Uint8("version", v.Version()),
		zap.Uint32("guardianSetIndex", v.guardianSetIndex),
		zap.Int("signatureCount", v.signatures.Len()),
		zap.Uint32("timestamp", v.body.Timestamp),
		zap.Uint32("nonce", v.body.Nonce),
		zap.Uint64("sequence", v.body.Sequence),
		zap.Uint8("consistencyLevel", v.body.ConsistencyLevel),
		zap.Uint16("emitterChain", uint16(v.body.EmitterChain)),
		zap.String("emitterAddress", hex.EncodeToString(v.body.EmitterAddress[:])),
		zap.Int("payloadLength", len(v.body.Payload)),
		zap.String("payloadHex", hex.EncodeToString(v.body.Payload)),
		zap.String("digest", v.HexDigest()),
	)

	for i, sig := range v.signatures.sigs {
		logger.Debug("VAA Signature",
			zap.Int("index", i),
			zap.Uint8("guardianIndex", sig.GuardianIndex),
			zap.String("signature", hex.EncodeToString(sig.Data[:])),
		)
	}
}
