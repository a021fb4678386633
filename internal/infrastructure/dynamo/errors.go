package dynamo

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// asConditionFailed reports whether err is a DynamoDB conditional-check
// failure, assigning it to target when it is.
func asConditionFailed(err error, target **types.ConditionalCheckFailedException) bool {
	return errors.As(err, target)
}
