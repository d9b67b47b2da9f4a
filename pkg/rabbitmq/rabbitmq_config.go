package rabbitmq

import (
	"fmt"
	"net/url"

	"zk-attestation/pkg/utilities"
)

type RabbitmqConfigJson struct {
	Enabled          bool                           `json:"enabled"`
	Host             string                         `json:"host"`
	Port             uint16                         `json:"port"`
	User             string                         `json:"user"`
	Password         string                         `json:"password"`
	MaxRetries       int                            `json:"max_retries"`
	PublishersConfig []RabbitmqPublishersConfigJson `json:"publishers"`
	ConsumersConfig  []RabbitmqConsumerConfigJson   `json:"consumers"`
}

type RabbitmqConfig struct {
	Enabled          bool
	Host             string
	Port             uint16
	User             string
	Password         string
	MaxRetries       int
	PublishersConfig []RabbitmqPublishersConfig
	ConsumersConfig  []RabbitmqConsumerConfig
}

func (rcj RabbitmqConfigJson) ConvertToDomain() RabbitmqConfig {
	host := rcj.Host
	if host == "" {
		host = "rabbitmq"
	}
	port := rcj.Port
	if port == 0 {
		port = 5672
	}
	retries := rcj.MaxRetries
	if retries <= 0 {
		retries = 7
	}

	return RabbitmqConfig{
		Enabled:    rcj.Enabled,
		Host:       host,
		Port:       port,
		User:       rcj.User,
		Password:   rcj.Password,
		MaxRetries: retries,
		PublishersConfig: utilities.ConvertJsonArrayToDomain[
			RabbitmqPublishersConfigJson,
			RabbitmqPublishersConfig,
		](rcj.PublishersConfig),
		ConsumersConfig: utilities.ConvertJsonArrayToDomain[
			RabbitmqConsumerConfigJson,
			RabbitmqConsumerConfig,
		](rcj.ConsumersConfig),
	}
}

func (rc RabbitmqConfig) URL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(rc.User, rc.Password),
		Host:   fmt.Sprintf("%s:%d", rc.Host, rc.Port),
		Path:   "/",
	}
	return u.String()
}

type RabbitmqPublishersConfigJson struct {
	PublisherAlias string `json:"publisher_alias"`
	Exchange       string `json:"exchange"`
	RoutingKey     string `json:"routing_key"`
}

type RabbitmqPublishersConfig struct {
	PublisherAlias PublisherAlias
	Exchange       string
	RoutingKey     string
}

func (rpcj RabbitmqPublishersConfigJson) ConvertToDomain() RabbitmqPublishersConfig {
	return RabbitmqPublishersConfig{
		PublisherAlias: PublisherAlias(rpcj.PublisherAlias),
		Exchange:       rpcj.Exchange,
		RoutingKey:     rpcj.RoutingKey,
	}
}

type RabbitmqConsumerConfigJson struct {
	ConsumerAlias string `json:"consumer_alias"`
	ConsumerTag   string `json:"consumer_tag"`
	QueueName     string `json:"queue_name"`
}

type RabbitmqConsumerConfig struct {
	ConsumerAlias ConsumerAlias
	ConsumerTag   string
	QueueName     string
}

func (rccj RabbitmqConsumerConfigJson) ConvertToDomain() RabbitmqConsumerConfig {
	return RabbitmqConsumerConfig{
		ConsumerAlias: ConsumerAlias(rccj.ConsumerAlias),
		QueueName:     rccj.QueueName,
		ConsumerTag:   rccj.ConsumerTag,
	}
}
