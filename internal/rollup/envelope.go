package rollup

import "encoding/json"

// decodeRequestEnvelope reads a finish reply that is already known to be valid
// JSON. It never fails: a missing or mistyped request_type yields an empty
// kind, which the driver rejects, and data of an unknown kind is not read at
// all. For known kinds every field that does not have the expected type falls
// back to its zero value.
func decodeRequestEnvelope(body []byte) Request {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Request{}
	}

	var kind RequestKind
	_ = json.Unmarshal(envelope["request_type"], &kind)
	request := Request{Kind: kind}
	if kind != RequestKindAdvance && kind != RequestKindInspect {
		return request
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(envelope["data"], &data); err != nil {
		return request
	}
	_ = json.Unmarshal(data["payload"], &request.Payload)
	request.Metadata = decodeMetadata(data["metadata"])
	return request
}

// decodeMetadata returns nil unless raw is a JSON object.
func decodeMetadata(raw json.RawMessage) *Metadata {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil
	}
	var metadata Metadata
	_ = json.Unmarshal(fields["msg_sender"], &metadata.MsgSender)
	metadata.EpochIndex = decodeUint(fields["epoch_index"])
	metadata.InputIndex = decodeUint(fields["input_index"])
	metadata.BlockNumber = decodeUint(fields["block_number"])
	metadata.Timestamp = decodeUint(fields["timestamp"])
	return &metadata
}

func decodeUint(raw json.RawMessage) uint64 {
	var value uint64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0
	}
	return value
}
