package attributes

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const stringDataType = "String"

// FromSQS converts SQS message attributes into Attributes. Binary attributes
// are skipped.
func FromSQS(attrs map[string]types.MessageAttributeValue) Attributes {
	if len(attrs) == 0 {
		return Attributes{}
	}

	result := make(Attributes, len(attrs))
	for k, v := range attrs {
		if v.StringValue == nil {
			continue
		}
		result[k] = *v.StringValue
	}
	return result
}

// ToSQS converts Attributes into SQS string message attributes. Empty values
// are dropped since SQS rejects String attributes without a value.
func ToSQS(attrs Attributes) map[string]types.MessageAttributeValue {
	out := make(map[string]types.MessageAttributeValue, len(attrs))
	for k, v := range attrs {
		if v == "" {
			continue
		}
		out[k] = types.MessageAttributeValue{
			DataType:    aws.String(stringDataType),
			StringValue: aws.String(v),
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
