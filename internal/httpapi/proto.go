package httpapi

import (
	"io"
	"mime"
	"net/http"

	"google.golang.org/protobuf/proto"
)

// maxRequestBody caps the request body size for both protobuf and JSON
// payloads.  A registration is three short strings.
const maxRequestBody = 4096

const protobufType = "application/x-protobuf"

func isProtobufType(v string) bool {
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return false
	}
	return mt == protobufType || mt == "application/protobuf"
}

// isProtobuf reports whether the request body is protobuf encoded.
func isProtobuf(r *http.Request) bool {
	return isProtobufType(r.Header.Get("Content-Type"))
}

// wantsProtobuf reports whether the client asked for a protobuf response.
func wantsProtobuf(r *http.Request) bool {
	return isProtobufType(r.Header.Get("Accept"))
}

// readProto reads the request body and unmarshals it into msg.
func readProto(r *http.Request, msg proto.Message) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return err
	}
	return proto.Unmarshal(body, msg)
}

// writeProto marshals msg and writes it with the given HTTP status.
func writeProto(w http.ResponseWriter, status int, msg proto.Message) {
	data, err := proto.Marshal(msg)
	if err != nil {
		// Fall back to a plain-text error if marshalling fails.
		http.Error(w, "proto marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", protobufType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
