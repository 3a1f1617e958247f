package redisstore

import (
	"github.com/okian/clink/internal/domain/model"
)

/*
	PROFILES:   {prefix}:profile:{id}            hash   handle, contact
	SCORES:     {prefix}:scores                   zset   member=id score=total
	PAIR MARKS: {prefix}:pair:{day}:{low}:{high}  string, TTL until the next UTC day
	WINDOW:     {prefix}:window                   zset   member=event json score=received ms
	            {prefix}:window:seq               insertion counter
*/

const (
	fieldHandle  = "handle"
	fieldContact = "contact"
)

func (s *Store) profileKey(id model.ParticipantID) string {
	return s.prefix + ":profile:" + id.String()
}

func (s *Store) scoresKey() string {
	return s.prefix + ":scores"
}

func (s *Store) pairKey(k model.PairKey) string {
	return s.prefix + ":pair:" + k.String()
}

func (s *Store) windowKey() string {
	return s.prefix + ":window"
}

func (s *Store) windowSeqKey() string {
	return s.prefix + ":window:seq"
}
