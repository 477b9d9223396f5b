package errors

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ToGRPCError converts an error to a gRPC status error
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}

	var customErr *Error
	if !errors.As(err, &customErr) {
		if _, ok := status.FromError(err); ok {
			return err
		}
		return status.Error(codes.Internal, err.Error())
	}

	return status.Error(customErr.Code.GRPCCode(), customErr.Message)
}

// FromGRPCError converts a gRPC status error back to an Error
func FromGRPCError(err error) *Error {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return Wrap(err, "unknown error")
	}
	if st.Code() == codes.OK {
		return nil
	}

	return &Error{
		Code:    codeFromGRPC(st.Code()),
		Message: st.Message(),
		Cause:   err,
	}
}
