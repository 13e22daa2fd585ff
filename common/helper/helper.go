package helper

import (
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"time"
)

func GetTimestamp() int64 {
	return time.Now().Unix()
}

func GetTimeString() string {
	now := time.Now()
	return fmt.Sprintf("%s%d", now.Format("20060102150405"), now.UnixNano()%1e9)
}

// GenRequestID 生成请求ID（时间串 + 随机数，便于日志按时间排序检索）
func GenRequestID() string {
	return GetTimeString() + GetRandomNumberString(8)
}

func GetRandomNumberString(length int) string {
	key := make([]byte, length)
	for i := 0; i < length; i++ {
		key[i] = byte(rand.Intn(10) + '0')
	}
	return string(key)
}

func MessageWithRequestId(message string, id string) string {
	return fmt.Sprintf("%s (request id: %s)", message, id)
}

// GetIp returns the first non-loopback IPv4 address of the host.
func GetIp() (ip string) {
	ips, err := net.InterfaceAddrs()
	if err != nil {
		return ip
	}
	for _, a := range ips {
		if ipNet, ok := a.(*net.IPNet); ok && !ipNet.IP.IsLoopback() {
			if ipNet.IP.To4() != nil {
				ip = ipNet.IP.String()
				if strings.HasPrefix(ip, "10") || strings.HasPrefix(ip, "172") || strings.HasPrefix(ip, "192.168") {
					ip = ""
					continue
				}
				return
			}
		}
	}
	return
}

func Bytes2Size(num int64) string {
	numStr := ""
	unit := "B"
	if num/(1024*1024*1024) > 1 {
		numStr = fmt.Sprintf("%.2f", float64(num)/(1024*1024*1024))
		unit = "GB"
	} else if num/(1024*1024) > 1 {
		numStr = fmt.Sprintf("%.2f", float64(num)/(1024*1024))
		unit = "MB"
	} else if num/1024 > 1 {
		numStr = fmt.Sprintf("%.2f", float64(num)/1024)
		unit = "KB"
	} else {
		numStr = strconv.FormatInt(num, 10)
	}
	return numStr + " " + unit
}
