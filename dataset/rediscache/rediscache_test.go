package rediscache

import (
	"reflect"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zalepa/indicadores/dataset"
)

var _ dataset.Cache = (*Cache)(nil)

func TestCodecKeepsMissingYears(t *testing.T) {
	recs := []dataset.Record{
		{
			RegionName:  "Antofagasta",
			CommuneName: "Taltal",
			CommuneCode: 2104,
			Sex:         dataset.SexFemale,
			SexLabel:    "Mujer",
			Values:      map[int]float64{2017: 1234.56},
		},
		{
			CommuneName: "Taltal",
			Sex:         dataset.SexTotal,
			Values:      map[int]float64{2017: 900, 2018: 950.5},
			Extra:       map[string]float64{"Var_Porc": -2.5},
		},
	}
	b, err := Encode(recs)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, recs) {
		t.Errorf("decoded %+v, want %+v", got, recs)
	}
	if _, ok := got[0].Value(2018); ok {
		t.Error("a missing year came back as a value")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Error("Decode accepted invalid input")
	}
}

func TestUnreachableRedisIsAMiss(t *testing.T) {
	rc := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
	defer rc.Close()
	c := New(rc, time.Minute)
	c.timeout = 200 * time.Millisecond

	c.Add("data/ingresos/Region_2.xlsx", []dataset.Record{{CommuneName: "Taltal"}})
	if _, ok := c.Get("data/ingresos/Region_2.xlsx"); ok {
		t.Error("Get on an unreachable server reported a hit")
	}
	c.Remove("data/ingresos/Region_2.xlsx")
	c.Purge()
}

func TestOpenFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	if rc := OpenFromEnv(); rc != nil {
		t.Error("OpenFromEnv without REDIS_ADDR should return nil")
	}
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")
	rc := OpenFromEnv()
	if rc == nil || rc.Options().DB != 3 {
		t.Errorf("got %v, want client on DB 3", rc)
	}
	rc.Close()
}
