package publishers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSQSClient struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQSClient) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-123")}, nil
}

func TestAWSSQSSenderSendSuccess(t *testing.T) {
	client := &fakeSQSClient{}
	sender := &awsSQSSender{
		queueURL: "https://example.com/queue",
		client:   client,
		log:      noopLogger{},
	}

	err := sender.Send(context.Background(), Event{
		SourceID:  "bazos",
		Status:    StatusCompleted,
		ItemCount: 2,
	})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if client.input == nil {
		t.Fatalf("client was not called")
	}
	if got := aws.ToString(client.input.QueueUrl); got != "https://example.com/queue" {
		t.Fatalf("QueueUrl = %s", got)
	}
	attr, ok := client.input.MessageAttributes["source_id"]
	if !ok || aws.ToString(attr.StringValue) != "bazos" {
		t.Fatalf("source_id attribute missing or wrong: %#v", attr)
	}
	if aws.ToString(attr.DataType) != "String" {
		t.Fatalf("DataType should be String, got %#v", attr.DataType)
	}
	if _, ok := client.input.MessageAttributes["run_id"]; ok {
		t.Fatalf("empty run_id should not be sent as an attribute")
	}
	body := aws.ToString(client.input.MessageBody)
	if !strings.Contains(body, `"source_id":"bazos"`) || !strings.Contains(body, `"item_count":2`) {
		t.Fatalf("MessageBody missing event fields: %s", body)
	}
}

func TestAWSSQSSenderFitsOversizedEvent(t *testing.T) {
	client := &fakeSQSClient{}
	sender := &awsSQSSender{queueURL: "q", client: client, log: noopLogger{}}

	if err := sender.Send(context.Background(), bulkyEvent(400)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	body := aws.ToString(client.input.MessageBody)
	if len(body) > maxAWSMessageBytes {
		t.Fatalf("message body is %d bytes, limit %d", len(body), maxAWSMessageBytes)
	}
	if !strings.Contains(body, `"items_truncated":true`) || !strings.Contains(body, `"item_count":400`) {
		t.Fatalf("expected truncated summary, got %.200s", body)
	}
}

func TestAWSSQSSenderSendError(t *testing.T) {
	client := &fakeSQSClient{err: errors.New("boom")}
	sender := &awsSQSSender{
		queueURL: "https://example.com/queue",
		client:   client,
		log:      noopLogger{},
	}

	if err := sender.Send(context.Background(), Event{SourceID: "bazos"}); err == nil {
		t.Fatalf("expected error from Send")
	}
}

func TestQueuePublisherDelegatesToSender(t *testing.T) {
	client := &fakeSQSClient{}
	pub := &queuePublisher{
		id:     "queue",
		typ:    TypeSQS,
		sender: &awsSQSSender{queueURL: "q", client: client, log: noopLogger{}},
	}
	if pub.ID() != "queue" || pub.Type() != TypeSQS {
		t.Fatalf("unexpected identity %s/%s", pub.ID(), pub.Type())
	}
	if err := pub.Publish(context.Background(), Event{RunID: "run-1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if client.input == nil {
		t.Fatalf("sender was not used")
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close without closer: %v", err)
	}
}
