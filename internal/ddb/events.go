package ddb

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/letmevibethatforyou/scoutx/store/dynamo"
)

// DynamoDBEvent represents a DynamoDB stream event
type DynamoDBEvent = events.DynamoDBEvent

// DynamoDBEventRecord represents a single DynamoDB stream record
type DynamoDBEventRecord = events.DynamoDBEventRecord

// DynamoDBOperationType represents the type of DynamoDB operation
type DynamoDBOperationType string

const (
	DynamoDBOperationTypeInsert DynamoDBOperationType = "INSERT"
	DynamoDBOperationTypeModify DynamoDBOperationType = "MODIFY"
	DynamoDBOperationTypeRemove DynamoDBOperationType = "REMOVE"
)

// UnmarshalRecord converts a stream image into a record
func UnmarshalRecord(image map[string]events.DynamoDBAttributeValue) (dynamo.Record, error) {
	item, err := ToAttributeValueMap(image)
	if err != nil {
		return dynamo.Record{}, err
	}

	var record dynamo.Record
	if err := attributevalue.UnmarshalMap(item, &record); err != nil {
		return dynamo.Record{}, err
	}
	return record, nil
}

// UnmarshalAttributeValueMap decodes a DynamoDB JSON object such as
// {"pk": {"S": "1"}} into SDK attribute values.
func UnmarshalAttributeValueMap(data []byte) (map[string]types.AttributeValue, error) {
	var image map[string]events.DynamoDBAttributeValue
	if err := json.Unmarshal(data, &image); err != nil {
		return nil, err
	}
	return ToAttributeValueMap(image)
}

// ToAttributeValueMap converts a stream image to the SDK representation
// understood by attributevalue.
func ToAttributeValueMap(image map[string]events.DynamoDBAttributeValue) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(image))
	for key, value := range image {
		av, err := ToAttributeValue(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[key] = av
	}
	return out, nil
}

// ToAttributeValue converts a single stream attribute value.
func ToAttributeValue(av events.DynamoDBAttributeValue) (types.AttributeValue, error) {
	switch av.DataType() {
	case events.DataTypeString:
		return &types.AttributeValueMemberS{Value: av.String()}, nil
	case events.DataTypeNumber:
		return &types.AttributeValueMemberN{Value: av.Number()}, nil
	case events.DataTypeBinary:
		return &types.AttributeValueMemberB{Value: av.Binary()}, nil
	case events.DataTypeBoolean:
		return &types.AttributeValueMemberBOOL{Value: av.Boolean()}, nil
	case events.DataTypeNull:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case events.DataTypeStringSet:
		return &types.AttributeValueMemberSS{Value: av.StringSet()}, nil
	case events.DataTypeNumberSet:
		return &types.AttributeValueMemberNS{Value: av.NumberSet()}, nil
	case events.DataTypeBinarySet:
		return &types.AttributeValueMemberBS{Value: av.BinarySet()}, nil
	case events.DataTypeMap:
		m, err := ToAttributeValueMap(av.Map())
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	case events.DataTypeList:
		items := av.List()
		list := make([]types.AttributeValue, 0, len(items))
		for i, item := range items {
			converted, err := ToAttributeValue(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list = append(list, converted)
		}
		return &types.AttributeValueMemberL{Value: list}, nil
	default:
		return nil, fmt.Errorf("unsupported attribute value type %d", av.DataType())
	}
}
